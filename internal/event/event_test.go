package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePost(t *testing.T) {
	payload := `{
		"id": "114",
		"content": "<p>hello</p>",
		"reblogs_count": 3,
		"account": {"id": "7", "acct": "alice"},
		"created_at": "2026-08-24T12:00:00Z"
	}`

	env := Envelope{Kind: KindUpsert, Payload: json.RawMessage(payload)}
	post, err := env.DecodePost()
	require.NoError(t, err)
	assert.Equal(t, "114", post.ID)
	assert.Equal(t, int64(3), post.ReblogsCount)
	assert.Equal(t, "alice", post.Account.Acct)
}

func TestDecodePostRejectsMissingFields(t *testing.T) {
	env := Envelope{Kind: KindEdit, Payload: json.RawMessage(`{"id": "114"}`)}
	_, err := env.DecodePost()
	assert.ErrorContains(t, err, "missing account")

	env = Envelope{Kind: KindUpsert, Payload: json.RawMessage(`{"account": {"id": "7"}}`)}
	_, err = env.DecodePost()
	assert.ErrorContains(t, err, "missing id")

	env = Envelope{Kind: KindUpsert, Payload: json.RawMessage(`not json`)}
	_, err = env.DecodePost()
	assert.Error(t, err)
}

func TestDecodePostRejectsWrongKind(t *testing.T) {
	env := Envelope{Kind: KindDelete, Payload: json.RawMessage(`{}`)}
	_, err := env.DecodePost()
	assert.Error(t, err)
}

func TestDecodePostID(t *testing.T) {
	env := Envelope{Kind: KindDelete, Payload: json.RawMessage(`"114"`)}
	id, err := env.DecodePostID()
	require.NoError(t, err)
	assert.Equal(t, "114", id)

	// Bare identifiers arrive from transports that do not quote the id
	env = Envelope{Kind: KindDelete, Payload: json.RawMessage(`114`)}
	id, err = env.DecodePostID()
	require.NoError(t, err)
	assert.Equal(t, "114", id)

	env = Envelope{Kind: KindDelete, Payload: json.RawMessage(`""`)}
	_, err = env.DecodePostID()
	assert.Error(t, err)

	env = Envelope{Kind: KindUpsert, Payload: json.RawMessage(`"114"`)}
	_, err = env.DecodePostID()
	assert.Error(t, err)
}
