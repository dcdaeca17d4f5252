package directory

import (
	"context"
	"net/http"
	"time"

	"github.com/clubs-council/members-service/internal/shared"
)

// UserClient resolves users through the gateway's user directory.
type UserClient struct {
	endpoint string
	client   *http.Client
}

// NewUserClient constructs a UserClient with a per-call timeout.
func NewUserClient(gatewayURL string, timeout time.Duration) *UserClient {
	return &UserClient{
		endpoint: gatewayURL + "/graphql",
		client:   &http.Client{Timeout: timeout},
	}
}

const userProfileQuery = `query GetUserProfile($userInput: UserInput!) {
  userProfile(userInput: $userInput) { firstName lastName email rollno batch }
}`

// ResolveUser returns the profile for uid, or a not-found error when the
// directory knows no such user.
func (c *UserClient) ResolveUser(ctx context.Context, uid string) (*User, error) {
	var data struct {
		UserProfile *User `json:"userProfile"`
	}
	req := gqlRequest{
		Query:     userProfileQuery,
		Variables: map[string]any{"userInput": map[string]any{"uid": uid}},
	}
	if err := postQuery(ctx, c.client, c.endpoint, req, &data); err != nil {
		return nil, err
	}
	if data.UserProfile == nil {
		return nil, shared.ErrNotFound("no such user")
	}
	return data.UserProfile, nil
}

const userProfilesQuery = `query GetUserProfiles($userInputs: [UserInput!]!) {
  userProfiles(userInputs: $userInputs) { uid firstName lastName email rollno batch }
}`

// ResolveUsersBatch resolves many uids in one round trip. Unknown uids
// are absent from the result, not errors.
func (c *UserClient) ResolveUsersBatch(ctx context.Context, uids []string) (map[string]User, error) {
	inputs := make([]map[string]any, 0, len(uids))
	for _, uid := range uids {
		inputs = append(inputs, map[string]any{"uid": uid})
	}
	var data struct {
		UserProfiles []struct {
			UID string `json:"uid"`
			User
		} `json:"userProfiles"`
	}
	req := gqlRequest{
		Query:     userProfilesQuery,
		Variables: map[string]any{"userInputs": inputs},
	}
	if err := postQuery(ctx, c.client, c.endpoint, req, &data); err != nil {
		return nil, err
	}
	out := make(map[string]User, len(data.UserProfiles))
	for _, p := range data.UserProfiles {
		out[p.UID] = p.User
	}
	return out, nil
}

const usersByCohortQuery = `query GetUsersByCohort($cohortInput: CohortInput!) {
  usersByCohort(cohortInput: $cohortInput) { uid firstName lastName email rollno batch }
}`

// ResolveUsersByCohort returns members of an admission-year cohort,
// optionally restricted to undergraduate or postgraduate batches.
func (c *UserClient) ResolveUsersByCohort(ctx context.Context, year int, ug, pg bool) (map[string]User, error) {
	var data struct {
		UsersByCohort []struct {
			UID string `json:"uid"`
			User
		} `json:"usersByCohort"`
	}
	req := gqlRequest{
		Query:     usersByCohortQuery,
		Variables: map[string]any{"cohortInput": map[string]any{"year": year, "ug": ug, "pg": pg}},
	}
	if err := postQuery(ctx, c.client, c.endpoint, req, &data); err != nil {
		return nil, err
	}
	out := make(map[string]User, len(data.UsersByCohort))
	for _, p := range data.UsersByCohort {
		out[p.UID] = p.User
	}
	return out, nil
}
