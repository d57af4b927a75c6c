package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
	"github.com/naver-ai/elmi-monorepo/internal/transport"
)

var errQuit = errors.New("quit")

type consoleCommand struct {
	name  string
	usage string
	run   func(ctx context.Context, c *console, args []string) error
}

var consoleCommands = []consoleCommand{
	{"mount", "mount <song-id>", func(ctx context.Context, c *console, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		return c.mount(ctx, args[0])
	}},
	{"play", "play", func(_ context.Context, c *console, _ []string) error {
		return c.ctrl.PerformGlobalPlay()
	}},
	{"pause", "pause", func(_ context.Context, c *console, _ []string) error {
		c.ctrl.PauseMedia()
		return nil
	}},
	{"stop", "stop", func(_ context.Context, c *console, _ []string) error {
		c.ctrl.StopAllMedia()
		return nil
	}},
	{"line", "line <line-id> [force]", func(_ context.Context, c *console, args []string) error {
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		force := len(args) == 2 && args[1] == "force"
		return c.ctrl.PlayLineLoop(args[0], force)
	}},
	{"direct", "direct <ms>", func(_ context.Context, c *console, args []string) error {
		ms, err := millisArg(args)
		if err != nil {
			return err
		}
		return c.ctrl.DirectAccessLineLoop(ms, true)
	}},
	{"exit", "exit", func(_ context.Context, c *console, _ []string) error {
		c.ctrl.ExitLineLoop()
		return nil
	}},
	{"seek", "seek <ms>", func(_ context.Context, c *console, args []string) error {
		ms, err := millisArg(args)
		if err != nil {
			return err
		}
		c.ctrl.SeekGlobalMediaPosition(ms)
		return nil
	}},
	{"volume", "volume <0..1>", func(_ context.Context, c *console, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("volume: %w", err)
		}
		c.ctrl.SetVolume(v)
		return nil
	}},
	{"click", "click <ms>", func(_ context.Context, c *console, args []string) error {
		ms, err := millisArg(args)
		if err != nil {
			return err
		}
		c.ctrl.DispatchTimelineClickEvent(ms)
		return nil
	}},
	{"state", "state", func(_ context.Context, c *console, _ []string) error {
		c.printState()
		return nil
	}},
	{"lines", "lines", func(_ context.Context, c *console, _ []string) error {
		fmt.Fprintln(c.out, renderLines(c.ctrl.Lines()))
		return nil
	}},
	{"dispose", "dispose", func(_ context.Context, c *console, _ []string) error {
		c.ctrl.Dispose()
		return nil
	}},
}

var errUsage = errors.New("wrong arguments")

func millisArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	ms, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid milliseconds %q", args[0])
	}
	return ms, nil
}

// console runs text commands against a controller.
type console struct {
	ctrl  *transport.Controller
	mount mountFunc
	out   io.Writer
}

// exec runs one input line. It returns errQuit when the session should end.
func (c *console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "quit", "q":
		return errQuit
	case "help":
		for _, cmd := range consoleCommands {
			fmt.Fprintf(c.out, "  %s\n", cmd.usage)
		}
		fmt.Fprintln(c.out, "  quit")
		return nil
	}
	for _, cmd := range consoleCommands {
		if cmd.name != name {
			continue
		}
		if err := cmd.run(ctx, c, args); err != nil {
			if errors.Is(err, errUsage) {
				return fmt.Errorf("usage: %s", cmd.usage)
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", name)
}

func (c *console) printState() {
	st := c.ctrl.State()
	fmt.Fprintf(c.out, "song:     %s\n", orDash(st.MountedSongID))
	fmt.Fprintf(c.out, "status:   %s\n", st.Status)
	if st.PositionMillis != nil {
		fmt.Fprintf(c.out, "position: %s / %s\n",
			lyrics.FormatDuration(*st.PositionMillis), lyrics.FormatDuration(st.SongDurationMillis))
	}
	if st.LinePlayInfo != nil {
		fmt.Fprintf(c.out, "looping:  %s\n", st.LinePlayInfo.LineID)
	}
	if st.HitCoord != nil && st.HitCoord.HasLine() {
		fmt.Fprintf(c.out, "lyric:    %s #%d\n", st.HitCoord.LineID, st.HitCoord.Index)
	}
	fmt.Fprintf(c.out, "volume:   %.2f\n", st.Volume)
}

// watchLyrics prints each lyric line as playback enters it.
func (c *console) watchLyrics(ctx context.Context) {
	changes := c.ctrl.Changes()
	defer changes.Close()

	var current string
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes.Done():
			return
		case st := <-changes.C:
			var lineID string
			if st.HitCoord != nil {
				lineID = st.HitCoord.LineID
			}
			if lineID == current {
				continue
			}
			current = lineID
			if lineID == "" {
				continue
			}
			for _, l := range c.ctrl.Lines() {
				if l.ID == lineID {
					fmt.Fprintf(c.out, "\n♪ %s  %s\n", lyrics.FormatDuration(l.StartMillis), l.Lyric)
					break
				}
			}
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newConsoleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "console [song-id]",
		Short: "Drive the engine from an interactive prompt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, logger, engineOptions{})
			if err != nil {
				return err
			}
			defer eng.close()

			names := make([]readline.PrefixCompleterInterface, 0, len(consoleCommands)+2)
			for _, c := range consoleCommands {
				names = append(names, readline.PcItem(c.name))
			}
			names = append(names, readline.PcItem("help"), readline.PcItem("quit"))

			rl, err := readline.NewEx(&readline.Config{
				Prompt:       "elmi> ",
				AutoComplete: readline.NewPrefixCompleter(names...),
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			c := &console{ctrl: eng.ctrl, mount: eng.mount, out: rl.Stdout()}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go c.watchLyrics(runCtx)

			if len(args) == 1 {
				if err := c.mount(runCtx, args[0]); err != nil {
					fmt.Fprintln(rl.Stderr(), "error:", err)
				}
			}

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if err != nil {
					return nil
				}
				if err := c.exec(runCtx, line); err != nil {
					if errors.Is(err, errQuit) {
						return nil
					}
					fmt.Fprintln(rl.Stderr(), "error:", err)
				}
			}
		},
	}
}
