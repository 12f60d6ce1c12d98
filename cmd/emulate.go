package cmd

import (
	"os/signal"
	"syscall"

	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/emulator"
	"github.com/spf13/cobra"
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Serve a folder of jpegs or an h264 file the way the phone app does",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var src emulator.Source
		switch {
		case emu.dir != "":
			src, err = emulator.NewJPEGDirSource(emu.dir)
		case emu.h264 != "":
			src, err = emulator.NewH264FileSource(emu.h264)
		default:
			err = errs.Wrapf(errs.ErrInvalidConfig, "one of --dir or --h264 is required")
		}
		if err != nil {
			return err
		}

		opt := []emulator.Option{
			emulator.WithFPS(emu.fps),
			emulator.WithAddrs(emu.wsAddr, emu.httpAddr),
		}
		if emu.noHello {
			opt = append(opt, emulator.WithoutHello())
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			emulator.StopAll()
		}()
		return emulator.Launch("emulator", emulator.NewServer(src, opt...), duration)
	},
}

type emulateArgs struct {
	dir      string
	h264     string
	fps      int
	wsAddr   string
	httpAddr string
	noHello  bool
}

var emu emulateArgs

func init() {
	rootCmd.AddCommand(emulateCmd)

	emulateCmd.Flags().StringVar(&emu.dir, "dir", "", "folder of .jpg frames served as mjpeg")
	emulateCmd.Flags().StringVar(&emu.h264, "h264", "", "annex-b h264 file")
	emulateCmd.Flags().IntVar(&emu.fps, "fps", 30, "frames per second")
	emulateCmd.Flags().StringVar(&emu.wsAddr, "ws-addr", ":8080", "websocket listen address")
	emulateCmd.Flags().StringVar(&emu.httpAddr, "http-addr", ":8081", "http listen address")
	emulateCmd.Flags().BoolVar(&emu.noHello, "no-hello", false, "skip the hello message")
}
