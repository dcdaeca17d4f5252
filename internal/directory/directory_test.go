package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/clubs-council/members-service/internal/shared"
)

func gatewayStub(t *testing.T, hits *atomic.Int64, respond func(query string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(req.Query)))
	}))
}

func TestResolveUser(t *testing.T) {
	srv := gatewayStub(t, nil, func(string) string {
		return `{"data":{"userProfile":{"firstName":"Alice","lastName":"Kumar","email":"alice@example.org"}}}`
	})
	defer srv.Close()

	client := NewUserClient(srv.URL, time.Second)
	user, err := client.ResolveUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", user.FirstName)
	require.Equal(t, "alice@example.org", user.Email)
}

func TestResolveUserNotFound(t *testing.T) {
	srv := gatewayStub(t, nil, func(string) string {
		return `{"data":{"userProfile":null}}`
	})
	defer srv.Close()

	client := NewUserClient(srv.URL, time.Second)
	_, err := client.ResolveUser(context.Background(), "ghost")
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestResolveUserGatewayUnreachable(t *testing.T) {
	client := NewUserClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := client.ResolveUser(context.Background(), "alice")
	require.Equal(t, shared.KindDependency, shared.KindOf(err))
}

func TestResolveUserGatewayError(t *testing.T) {
	srv := gatewayStub(t, nil, func(string) string {
		return `{"errors":[{"message":"backend offline"}]}`
	})
	defer srv.Close()

	client := NewUserClient(srv.URL, time.Second)
	_, err := client.ResolveUser(context.Background(), "alice")
	require.Equal(t, shared.KindDependency, shared.KindOf(err))
	require.Contains(t, err.Error(), "backend offline")
}

func TestResolveUsersBatch(t *testing.T) {
	srv := gatewayStub(t, nil, func(string) string {
		return `{"data":{"userProfiles":[
			{"uid":"alice","firstName":"Alice"},
			{"uid":"bala","firstName":"Bala"}]}}`
	})
	defer srv.Close()

	client := NewUserClient(srv.URL, time.Second)
	users, err := client.ResolveUsersBatch(context.Background(), []string{"alice", "bala", "ghost"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "Alice", users["alice"].FirstName)
	_, ok := users["ghost"]
	require.False(t, ok)
}

func TestResolveUsersByCohort(t *testing.T) {
	srv := gatewayStub(t, nil, func(query string) string {
		require.Contains(t, query, "usersByCohort")
		return `{"data":{"usersByCohort":[
			{"uid":"alice","firstName":"Alice","batch":"ug2023"},
			{"uid":"chandra","firstName":"Chandra","batch":"ug2023"}]}}`
	})
	defer srv.Close()

	client := NewUserClient(srv.URL, time.Second)
	users, err := client.ResolveUsersByCohort(context.Background(), 2023, true, false)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "ug2023", users["alice"].Batch)
}

func TestResolveClubCaches(t *testing.T) {
	var hits atomic.Int64
	srv := gatewayStub(t, &hits, func(string) string {
		return `{"data":{"club":{"cid":"chess-club","name":"Chess Club","category":"cultural"}}}`
	})
	defer srv.Close()

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := NewClubClient(srv.URL, time.Second, cache, time.Minute, nil)
	ctx := context.Background()

	first, err := client.ResolveClub(ctx, "chess-club")
	require.NoError(t, err)
	require.Equal(t, "cultural", first.Category)

	second, err := client.ResolveClub(ctx, "chess-club")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, hits.Load())

	// cache expiry forces a fresh gateway round trip
	mr.FastForward(2 * time.Minute)
	_, err = client.ResolveClub(ctx, "chess-club")
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestResolveClubNotFound(t *testing.T) {
	srv := gatewayStub(t, nil, func(string) string {
		return `{"data":{"club":null}}`
	})
	defer srv.Close()

	client := NewClubClient(srv.URL, time.Second, nil, 0, nil)
	_, err := client.ResolveClub(context.Background(), "ghost-club")
	require.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestListAllClubs(t *testing.T) {
	srv := gatewayStub(t, nil, func(string) string {
		return `{"data":{"allClubs":[{"cid":"a","name":"A","category":"cultural"},{"cid":"b","name":"B","category":"technical"}]}}`
	})
	defer srv.Close()

	client := NewClubClient(srv.URL, time.Second, nil, 0, nil)
	clubs, err := client.ListAllClubs(context.Background())
	require.NoError(t, err)
	require.Len(t, clubs, 2)
}
