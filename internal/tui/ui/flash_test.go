package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	assert.Nil(t, f.Current())

	f.Err(errors.New("send failed"))
	msg := f.Current()
	require.NotNil(t, msg)
	assert.Equal(t, "send failed", msg.Text)
	assert.Equal(t, FlashErr, msg.Level)

	now = now.Add(11 * time.Second)
	assert.Nil(t, f.Current())
}

func TestFlashColor(t *testing.T) {
	th := DefaultTheme()
	assert.Equal(t, Tag(th.FlashErrColor), th.FlashColor(FlashErr))
	assert.Equal(t, Tag(th.FlashInfoColor), th.FlashColor(FlashInfo))
	assert.Equal(t, "#010203", Tag(tcell.NewRGBColor(1, 2, 3)))
}
