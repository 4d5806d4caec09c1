package avplay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainCommandsEmpty(t *testing.T) {
	mailbox := make(chan command, 8)
	assert.Empty(t, drainCommands(mailbox))
}

func TestDrainCommandsCoalescesSeeks(t *testing.T) {
	mailbox := make(chan command, 8)
	mailbox <- seekCommand{target: time.Second}
	mailbox <- recreateCodecCommand{disableHardware: true}
	mailbox <- seekCommand{target: 2 * time.Second}
	mailbox <- seekCommand{target: 3 * time.Second}

	cmds := drainCommands(mailbox)
	require.Len(t, cmds, 2)

	var seeks []seekCommand
	for _, c := range cmds {
		if s, ok := c.(seekCommand); ok {
			seeks = append(seeks, s)
		}
	}
	require.Len(t, seeks, 1, "a burst of seeks coalesces to the last target")
	assert.Equal(t, 3*time.Second, seeks[0].target)
}

func TestDrainCommandsKeepsOrder(t *testing.T) {
	mailbox := make(chan command, 8)
	mailbox <- recreateCodecCommand{}
	mailbox <- seekCommand{target: time.Second}

	cmds := drainCommands(mailbox)
	require.Len(t, cmds, 2)
	assert.IsType(t, recreateCodecCommand{}, cmds[0])
	assert.IsType(t, seekCommand{}, cmds[1])
}
