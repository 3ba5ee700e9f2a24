package history

import (
	"fmt"
	"testing"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverPage simulates the server: 3 pages of size n over ids m0..m(3n-1),
// page 1 holding the newest messages.
func serverPage(page, n, total int) chat.Page {
	var msgs []chat.Message
	newest := total*n - 1
	hi := newest - (page-1)*n
	for id := hi - n + 1; id <= hi; id++ {
		msgs = append(msgs, chat.Message{ID: fmt.Sprintf("m%d", id)})
	}
	return chat.Page{Messages: msgs, TotalPages: total}
}

func ids(msgs []chat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestFirstBeginRequestsPageOne(t *testing.T) {
	p := New(2)
	page, ok := p.Begin()
	require.True(t, ok)
	assert.Equal(t, 1, page)
	assert.True(t, p.InFlight())
	assert.Equal(t, 1, p.Page())
}

func TestConcurrentBeginIsDropped(t *testing.T) {
	p := New(2)
	_, ok := p.Begin()
	require.True(t, ok)

	_, ok = p.Begin()
	assert.False(t, ok, "second Begin while in flight must be dropped")
}

func TestPagesPrependOldestFirstWithoutDuplicates(t *testing.T) {
	p := New(2)
	for want := 1; want <= 3; want++ {
		page, ok := p.Begin()
		require.True(t, ok)
		require.Equal(t, want, page)
		_, err := p.Apply(page, serverPage(page, 2, 3), nil)
		require.NoError(t, err)
		assert.Equal(t, want, p.Page())
	}

	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4", "m5"}, ids(p.Messages()))
	assert.True(t, p.Exhausted())

	_, ok := p.Begin()
	assert.False(t, ok, "Begin after the top of history must be a no-op")
}

func TestPageIncrementsByOne(t *testing.T) {
	p := New(2)
	page, _ := p.Begin()
	_, _ = p.Apply(page, serverPage(1, 2, 5), nil)
	require.Equal(t, 1, p.Page())

	page, _ = p.Begin()
	require.Equal(t, 2, page)
	_, _ = p.Apply(page, serverPage(2, 2, 5), nil)
	assert.Equal(t, 2, p.Page())
	assert.False(t, p.Exhausted())
}

func TestShortPageMarksTop(t *testing.T) {
	p := New(20)
	page, _ := p.Begin()
	_, err := p.Apply(page, chat.Page{Messages: []chat.Message{{ID: "a"}}}, nil)
	require.NoError(t, err)

	assert.True(t, p.Exhausted())
	_, ok := p.Begin()
	assert.False(t, ok)
}

func TestUnknownTotalStaysEligible(t *testing.T) {
	p := New(0)
	page, _ := p.Begin()
	_, _ = p.Apply(page, chat.Page{Messages: []chat.Message{{ID: "a"}}}, nil)

	page, ok := p.Begin()
	require.True(t, ok)
	assert.Equal(t, 2, page)
}

func TestApplySkipsHeldAndExcludedIDs(t *testing.T) {
	p := New(0)
	page, _ := p.Begin()
	_, _ = p.Apply(page, chat.Page{Messages: []chat.Message{{ID: "b"}, {ID: "c"}}, TotalPages: 3}, nil)

	page, _ = p.Begin()
	added, err := p.Apply(page, chat.Page{
		Messages:   []chat.Message{{ID: "a"}, {ID: "a"}, {ID: "b"}, {ID: "live"}},
		TotalPages: 3,
	}, func(id string) bool { return id == "live" })
	require.NoError(t, err)

	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"a", "b", "c"}, ids(p.Messages()))
	assert.False(t, p.Contains("live"))
}

func TestApplyRejectsUnexpectedPage(t *testing.T) {
	p := New(0)
	_, err := p.Apply(1, chat.Page{}, nil)
	assert.Error(t, err)

	_, _ = p.Begin()
	_, err = p.Apply(4, chat.Page{}, nil)
	assert.Error(t, err)
	assert.True(t, p.InFlight())
}

func TestFailReleasesSlotWithoutMovingCursor(t *testing.T) {
	p := New(2)
	page, _ := p.Begin()
	_, _ = p.Apply(page, serverPage(1, 2, 3), nil)

	page, _ = p.Begin()
	p.Fail(page)
	assert.False(t, p.InFlight())
	assert.Equal(t, 1, p.Page())

	retry, ok := p.Begin()
	require.True(t, ok)
	assert.Equal(t, page, retry)
}

func TestReset(t *testing.T) {
	p := New(2)
	page, _ := p.Begin()
	_, _ = p.Apply(page, serverPage(1, 2, 1), nil)
	p.Reset()

	assert.Equal(t, 1, p.Page())
	assert.Equal(t, 0, p.TotalPages())
	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Exhausted())
	assert.False(t, p.Contains("m0"))

	page, ok := p.Begin()
	require.True(t, ok)
	assert.Equal(t, 1, page)
}
