package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parloir/parloir/internal/models"
)

func TestCreateUserValidation(t *testing.T) {
	d := newTestDatabase(t)

	_, err := d.CreateUser("ab", "ab@example.com", "abc", "password123")
	assert.ErrorIs(t, err, ErrInvalid, "username below the minimum length")

	_, err = d.CreateUser("alice", "not-an-email", "alice", "password123")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = d.CreateUser("alice", "alice@example.com", "white space", "password123")
	assert.ErrorIs(t, err, ErrInvalid, "pseudo outside the allowed charset")

	user, err := d.CreateUser("alice", "alice@example.com", "alice", "password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.True(t, d.ComparePassword("password123", user.PasswordHash))
	assert.False(t, d.ComparePassword("wrong", user.PasswordHash))

	_, err = d.CreateUser("alice", "other@example.com", "alice", "password123")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = d.CreateUser("alice2", "alice@example.com", "alice", "password123")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAvailabilityChecks(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")

	available, err := d.UsernameAvailable("alice")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = d.UsernameAvailable("bob")
	require.NoError(t, err)
	assert.True(t, available)

	available, err = d.EmailAvailable("alice@example.com")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestFriendRequestLifecycle(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	requested, err := d.RequestFriend("alice", "bob")
	require.NoError(t, err)
	assert.True(t, requested)

	_, err = d.RequestFriend("alice", "bob")
	assert.ErrorIs(t, err, ErrAlreadyRequested)

	require.NoError(t, d.ReplyRequestFriend("bob", "alice", "accept"))

	// the relation is symmetric and the request is consumed
	isFriend, err := d.IsFriend("alice", "bob")
	require.NoError(t, err)
	assert.True(t, isFriend)
	isFriend, err = d.IsFriend("bob", "alice")
	require.NoError(t, err)
	assert.True(t, isFriend)
	requesting, err := d.IsRequestingFriend("alice", "bob")
	require.NoError(t, err)
	assert.False(t, requesting)

	_, err = d.RequestFriend("alice", "bob")
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestDenyFriendRequest(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	_, err := d.RequestFriend("alice", "bob")
	require.NoError(t, err)
	require.NoError(t, d.ReplyRequestFriend("bob", "alice", "deny"))

	isFriend, err := d.IsFriend("alice", "bob")
	require.NoError(t, err)
	assert.False(t, isFriend)

	// denial leaves the door open for another try
	requested, err := d.RequestFriend("alice", "bob")
	require.NoError(t, err)
	assert.True(t, requested)
}

func TestReplyRequestUnknownAction(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	_, err := d.RequestFriend("alice", "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, d.ReplyRequestFriend("bob", "alice", "maybe"), ErrInvalid)
	assert.ErrorIs(t, d.ReplyRequestFriend("bob", "carol", "accept"), ErrInvalid)
	assert.ErrorIs(t, d.ReplyRequestFriend("alice", "bob", "accept"), ErrNoSuchRequest)
}

func TestRequestFriendBlockedIsSilent(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	require.NoError(t, d.BlockUser("bob", "alice"))

	// the block must not leak: no error, just requested=false
	requested, err := d.RequestFriend("alice", "bob")
	require.NoError(t, err)
	assert.False(t, requested)

	requesting, err := d.IsRequestingFriend("alice", "bob")
	require.NoError(t, err)
	assert.False(t, requesting)
}

func TestBlockUnfriendsFirst(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")
	makeFriends(t, d, "alice", "bob")

	require.NoError(t, d.BlockUser("alice", "bob"))

	isFriend, err := d.IsFriend("alice", "bob")
	require.NoError(t, err)
	assert.False(t, isFriend)
	isFriend, err = d.IsFriend("bob", "alice")
	require.NoError(t, err)
	assert.False(t, isFriend)

	// blocking twice is a no-op
	require.NoError(t, d.BlockUser("alice", "bob"))

	blocked, err := d.IsBlocked("bob", "alice")
	require.NoError(t, err)
	assert.True(t, blocked, "bob is on alice's block list")
	blocked, err = d.IsBlocked("alice", "bob")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestUnfriendRequiresFriendship(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	assert.ErrorIs(t, d.UnfriendUser("alice", "bob"), ErrNotFriends)

	makeFriends(t, d, "alice", "bob")
	require.NoError(t, d.UnfriendUser("alice", "bob"))

	isFriend, err := d.IsFriend("bob", "alice")
	require.NoError(t, err)
	assert.False(t, isFriend)
}

func TestUpdateStatusPresence(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")

	require.NoError(t, d.UpdateStatus("alice", "conn-1", StatusLogin))

	presence, err := d.IsConnectedUser("alice")
	require.NoError(t, err)
	assert.True(t, presence.Online)
	assert.Equal(t, "conn-1", presence.ConnectionID)

	require.NoError(t, d.UpdateStatus("alice", "", StatusLogout))
	presence, err = d.IsConnectedUser("alice")
	require.NoError(t, err)
	assert.False(t, presence.Online)

	assert.ErrorIs(t, d.UpdateStatus("ghost", "conn-2", StatusLogin), ErrNoSuchUser)

	// unknown users resolve to offline, never to an error
	presence, err = d.IsConnectedUser("ghost")
	require.NoError(t, err)
	assert.False(t, presence.Online)
}

func TestSearchUsers(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")
	seedUser(t, d, "bobby")
	seedUser(t, d, "boris")
	seedUser(t, d, "carol")

	room, err := d.CreateRoom("general", "alice")
	require.NoError(t, err)

	require.NoError(t, d.BlockUser("alice", "boris"))
	_, err = d.WhitelistGuest("alice", "bobby", room.ID)
	require.NoError(t, err)

	// non-guests may not search the room
	_, err = d.SearchUsers("carol", room.ID, "bo")
	assert.ErrorIs(t, err, ErrForbidden)

	// blocked, whitelisted and current guests are filtered out
	results, err := d.SearchUsers("alice", room.ID, "bo")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].User)

	_, err = d.AddGuest("alice", "bob", room.ID, models.PrivilegeBasic)
	require.NoError(t, err)
	results, err = d.SearchUsers("alice", room.ID, "bo")
	require.NoError(t, err)
	assert.Empty(t, results)
}
