package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingua-go/internal/apperr"
	"lingua-go/internal/imtypes"
	"lingua-go/internal/models"
)

func TestSendFriendRequest_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.onboardedUser(t, "a")
	b := env.onboardedUser(t, "b")

	_, err := env.friends.SendFriendRequest(ctx, a.ID, "missing")
	assert.True(t, errors.Is(err, ErrRecipientNotFound))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = env.friends.SendFriendRequest(ctx, a.ID, a.ID)
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))

	req, err := env.friends.SendFriendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestStatusPending, req.Status)

	_, err = env.friends.SendFriendRequest(ctx, a.ID, b.ID)
	assert.Equal(t, apperr.KindRequestAlreadyExists, apperr.KindOf(err))

	_, err = env.friends.SendFriendRequest(ctx, b.ID, a.ID)
	assert.Equal(t, apperr.KindRequestAlreadyExists, apperr.KindOf(err), "reverse direction")

	_, err = env.friends.AcceptFriendRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)

	_, err = env.friends.SendFriendRequest(ctx, a.ID, b.ID)
	assert.Equal(t, apperr.KindAlreadyFriends, apperr.KindOf(err))
	_, err = env.friends.SendFriendRequest(ctx, b.ID, a.ID)
	assert.Equal(t, apperr.KindAlreadyFriends, apperr.KindOf(err))
}

func TestAcceptFriendRequest_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.onboardedUser(t, "a")
	b := env.onboardedUser(t, "b")
	c := env.onboardedUser(t, "c")

	req, err := env.friends.SendFriendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = env.friends.AcceptFriendRequest(ctx, b.ID, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = env.friends.AcceptFriendRequest(ctx, a.ID, req.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err), "sender cannot accept")
	_, err = env.friends.AcceptFriendRequest(ctx, c.ID, req.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	friends, err := env.friends.GetFriendsList(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestAcceptFriendRequest_TwiceIsInvalidState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.onboardedUser(t, "a")
	b := env.onboardedUser(t, "b")

	req, err := env.friends.SendFriendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)

	accepted, err := env.friends.AcceptFriendRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestStatusAccepted, accepted.Status)

	_, err = env.friends.AcceptFriendRequest(ctx, b.ID, req.ID)
	assert.True(t, errors.Is(err, ErrRequestNotPending))
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	aUser, err := env.users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	bUser, err := env.users.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, aUser.Friends)
	assert.Equal(t, []string{a.ID}, bUser.Friends)
}

func TestFriendGraph_ListingsAndEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.onboardedUser(t, "a")
	b := env.onboardedUser(t, "b")

	req, err := env.friends.SendFriendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)

	outgoing, err := env.friends.ListOutgoingRequests(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, req.ID, outgoing[0].ID)
	assert.Equal(t, models.FriendRequestStatusPending, outgoing[0].Status)
	require.NotNil(t, outgoing[0].Recipient)
	assert.Equal(t, "b", outgoing[0].Recipient.FullName)

	incoming, err := env.friends.ListIncomingRequests(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, req.ID, incoming[0].ID)
	require.NotNil(t, incoming[0].Sender)
	assert.Equal(t, a.ID, incoming[0].Sender.ID)

	_, err = env.friends.AcceptFriendRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)

	incoming, err = env.friends.ListIncomingRequests(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)
	outgoing, err = env.friends.ListOutgoingRequests(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, outgoing)

	acceptedReqs, err := env.friends.ListAcceptedRequests(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, acceptedReqs, 1)
	assert.Equal(t, b.ID, acceptedReqs[0].Recipient.ID)

	aFriends, err := env.friends.GetFriendsList(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(aFriends))
	bFriends, err := env.friends.GetFriendsList(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids(bFriends))

	events := env.publisher.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, imtypes.FriendRequestSent, events[0].Type)
	assert.Equal(t, imtypes.FriendRequestAccepted, events[1].Type)
	assert.Equal(t, req.ID, events[1].RequestID)
	assert.Equal(t, a.ID, events[1].SenderID)
	assert.Equal(t, b.ID, events[1].RecipientID)
}

func TestFriendGraph_PublishFailureDoesNotUndoTransition(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errors.New("broker down")
	ctx := context.Background()
	a := env.onboardedUser(t, "a")
	b := env.onboardedUser(t, "b")

	req, err := env.friends.SendFriendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = env.friends.AcceptFriendRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)

	friends, err := env.friends.GetFriendsList(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, friends, 1)
}

func TestFriendGraph_StalledBrokerDoesNotHoldCaller(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.stall = true
	a := env.onboardedUser(t, "a")
	b := env.onboardedUser(t, "b")

	type result struct {
		req *models.FriendRequest
		err error
	}
	done := make(chan result, 1)
	go func() {
		req, err := env.friends.SendFriendRequest(context.Background(), a.ID, b.ID)
		if err == nil {
			_, err = env.friends.AcceptFriendRequest(context.Background(), b.ID, req.ID)
		}
		done <- result{req, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
	case <-time.After(3 * time.Second):
		t.Fatal("send and accept still waiting on the event publisher")
	}

	friends, err := env.friends.GetFriendsList(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(friends))
	assert.Len(t, env.publisher.recorded(), 2)
}

func TestRecommendUsers_Exclusions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.onboardedUser(t, "a")
	b := env.onboardedUser(t, "b")
	c := env.onboardedUser(t, "c")
	d := env.onboardedUser(t, "d")
	_, _, err := env.auth.Signup(ctx, "Not Onboarded", "e@x.com", "secret1")
	require.NoError(t, err)

	recs, err := env.friends.RecommendUsers(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID, d.ID}, ids(recs))

	req, err := env.friends.SendFriendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = env.friends.AcceptFriendRequest(ctx, b.ID, req.ID)
	require.NoError(t, err)
	_, err = env.friends.SendFriendRequest(ctx, a.ID, c.ID)
	require.NoError(t, err)

	recs, err = env.friends.RecommendUsers(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{d.ID}, ids(recs))

	// the pending exclusion applies to the recipient too
	recs, err = env.friends.RecommendUsers(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, d.ID}, ids(recs))

	recs, err = env.friends.RecommendUsers(ctx, d.ID, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSendFriendRequest_ConcurrentSendsLeaveOnePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.onboardedUser(t, "a")
	b := env.onboardedUser(t, "b")

	const senders = 8
	var wg sync.WaitGroup
	errs := make([]error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a.ID, b.ID
			if i%2 == 1 {
				from, to = b.ID, a.ID
			}
			_, errs[i] = env.friends.SendFriendRequest(ctx, from, to)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperr.KindRequestAlreadyExists, apperr.KindOf(err), err.Error())
	}
	assert.Equal(t, 1, succeeded)

	outA, err := env.friends.ListOutgoingRequests(ctx, a.ID)
	require.NoError(t, err)
	outB, err := env.friends.ListOutgoingRequests(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, len(outA)+len(outB))
}
