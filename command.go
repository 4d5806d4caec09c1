package avplay

import "time"

// command is a deferred action enqueued from any goroutine and executed only
// by the decode loop between iterations, which keeps every state mutation on
// a single goroutine.
type command interface{ isCommand() }

// seekCommand flushes both codec sessions, seeks the container, and arms the
// pre-target frame filter.
type seekCommand struct {
	target time.Duration
}

// recreateCodecCommand rebuilds the video codec session, optionally with
// hardware acceleration disabled for the stream.
type recreateCodecCommand struct {
	disableHardware bool
}

func (seekCommand) isCommand()          {}
func (recreateCodecCommand) isCommand() {}

// drainCommands empties the mailbox and returns the commands to run. Rapid
// seek bursts coalesce to last-wins: only the final seek of a batch performs
// the container seek, since no output is produced between commands of one
// drain.
func drainCommands(mailbox <-chan command) []command {
	var cmds []command
	for {
		select {
		case c := <-mailbox:
			if _, isSeek := c.(seekCommand); isSeek {
				// Drop any earlier seek still in the batch.
				for i := len(cmds) - 1; i >= 0; i-- {
					if _, ok := cmds[i].(seekCommand); ok {
						cmds = append(cmds[:i], cmds[i+1:]...)
					}
				}
			}
			cmds = append(cmds, c)
		default:
			return cmds
		}
	}
}
