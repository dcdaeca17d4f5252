// Package directory holds the clients for the user-directory and
// club-directory collaborators, reached through the federated gateway.
// Calls carry per-call timeouts and fail closed with a dependency error
// when the gateway is unreachable.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clubs-council/members-service/internal/shared"
)

// User is a resolved user-directory profile.
type User struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	RollNo    string `json:"rollno"`
	Batch     string `json:"batch"`
}

// Club is a resolved club-directory record.
type Club struct {
	CID      string `json:"cid"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// gqlRequest is the wire shape of a gateway query.
type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// postQuery issues one gateway query and decodes the `data` envelope into out.
func postQuery(ctx context.Context, client *http.Client, endpoint string, req gqlRequest, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return shared.ErrDependency("gateway unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return shared.ErrDependency(fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return shared.ErrDependency("gateway response malformed", err)
	}
	if len(envelope.Errors) > 0 {
		return shared.ErrDependency("gateway query failed: "+envelope.Errors[0].Message, nil)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return shared.ErrDependency("gateway response malformed", err)
	}
	return nil
}
