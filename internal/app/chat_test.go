package app

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/domain"
)

func TestChatBuffer_RetainsLastN(t *testing.T) {
	buf := NewChatBuffer(3)

	for i := 1; i <= 5; i++ {
		_, err := buf.Append("room-a", "Bob", fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	got := buf.List("room-a")
	require.Len(t, got, 3)
	assert.Equal(t, "msg-3", got[0].Content)
	assert.Equal(t, "msg-4", got[1].Content)
	assert.Equal(t, "msg-5", got[2].Content, "oldest first, newest last")
}

func TestChatBuffer_RoomsAreIsolated(t *testing.T) {
	buf := NewChatBuffer(10)

	_, err := buf.Append("room-a", "Bob", "hello a")
	require.NoError(t, err)
	_, err = buf.Append("room-b", "Carol", "hello b")
	require.NoError(t, err)

	assert.Len(t, buf.List("room-a"), 1)
	assert.Len(t, buf.List("room-b"), 1)
	assert.Empty(t, buf.List("room-c"))
}

func TestChatBuffer_Validation(t *testing.T) {
	buf := NewChatBuffer(10)

	_, err := buf.Append("room-a", "", "hi")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = buf.Append("room-a", "Bob", "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = buf.Append("room-a", "Bob", strings.Repeat("x", domain.MaxChatContentLen+1))
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	// Boundary length is accepted.
	_, err = buf.Append("room-a", "Bob", strings.Repeat("x", domain.MaxChatContentLen))
	assert.NoError(t, err)
}

func TestChatBuffer_Clear(t *testing.T) {
	buf := NewChatBuffer(10)

	_, err := buf.Append("room-a", "Bob", "hello")
	require.NoError(t, err)

	buf.Clear("room-a")
	assert.Empty(t, buf.List("room-a"))

	// History starts fresh after a clear.
	_, err = buf.Append("room-a", "Bob", "again")
	require.NoError(t, err)
	assert.Len(t, buf.List("room-a"), 1)
}

func TestChatBuffer_ListReturnsCopy(t *testing.T) {
	buf := NewChatBuffer(10)

	_, err := buf.Append("room-a", "Bob", "hello")
	require.NoError(t, err)

	got := buf.List("room-a")
	got[0].Content = "tampered"

	assert.Equal(t, "hello", buf.List("room-a")[0].Content)
}
