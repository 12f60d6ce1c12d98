package cmd

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/discovery"
	"github.com/bugVanisher/berrycam/media/codec/decoder"
	"github.com/bugVanisher/berrycam/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// drawTick matches a 30 fps compositor.
const drawTick = 33 * time.Millisecond

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Pull, decode and render a phone stream headlessly",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		proto := fileCfg.Device.Protocol
		if cmd.Flags().Changed("protocol") {
			if proto, err = config.ParseProtocol(play.protocol); err != nil {
				return err
			}
		}
		scanner := newScanner()
		ip := play.ip
		if ip == "" {
			ip = fileCfg.DeviceIP(firstDevice(ctx, scanner))
		}
		if ip == "" {
			return errs.Wrapf(errs.ErrInvalidConfig, "no device ip given and none discovered")
		}

		s := session.NewSession(config.NewSessionConfig(ip, proto),
			session.WithDecoderOptions(
				decoder.WithFFmpegPath(fileCfg.Decoder.FFmpegPath),
				decoder.WithOutputSize(fileCfg.Decoder.Width, fileCfg.Decoder.Height),
			),
		)

		addr := play.metricsAddr
		if addr == "" {
			addr = fileCfg.Metrics.Addr
		}
		if addr != "" {
			srv := serveMetrics(addr, s.Metrics().Handler())
			defer srv.Close()
		}

		go discovery.Run(ctx, scanner, fileCfg.Discovery.Interval, s.SetDevices)
		go draw(ctx, s, play.snapshotDir)

		err = session.Launch(ctx, "play", s, duration)
		log.Info().Any("stat", s.Stats()).Msg("[Play] done")
		return err
	},
}

type playArgs struct {
	ip          string
	protocol    string
	snapshotDir string
	metricsAddr string
}

var play playArgs

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&play.ip, "ip", "", "device ip (default: config file, then discovery)")
	playCmd.Flags().StringVarP(&play.protocol, "protocol", "p", "websocket", "websocket, http_h264, mjpeg or rtsp")
	playCmd.Flags().StringVar(&play.snapshotDir, "snapshot", "", "write the latest frame as png into this dir once per second")
	playCmd.Flags().StringVar(&play.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
}

func firstDevice(ctx context.Context, scanner *discovery.Scanner) string {
	for _, d := range scanner.Scan(ctx) {
		if _, ok := d.Preferred(); ok {
			log.Info().Str("name", d.Name).Str("ip", d.IP).Msg("[Play] use discovered device")
			return d.IP
		}
	}
	return ""
}

func serveMetrics(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", addr).Msg("[Play] metrics server fail")
		}
	}()
	log.Info().Str("addr", addr).Msg("[Play] serving metrics")
	return srv
}

// draw polls the session like a compositor would and optionally snapshots.
func draw(ctx context.Context, s *session.Session, dir string) {
	ticker := time.NewTicker(drawTick)
	defer ticker.Stop()
	var (
		drawn    uint64
		lastSnap time.Time
		img      *image.RGBA
	)
	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("drawn", drawn).Msg("[Play] draw stop")
			return
		case <-ticker.C:
		}
		snap := dir != "" && time.Since(lastSnap) >= time.Second
		ok := s.ReadFrame(func(pix []byte, w, h int) {
			drawn++
			if !snap {
				return
			}
			if img == nil || img.Rect.Dx() != w || img.Rect.Dy() != h {
				img = image.NewRGBA(image.Rect(0, 0, w, h))
			}
			copy(img.Pix, pix)
		})
		if ok && snap {
			lastSnap = time.Now()
			if err := writePNG(filepath.Join(dir, "latest.png"), img); err != nil {
				log.Warn().Err(err).Msg("[Play] snapshot fail")
			}
		}
	}
}

func writePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err = png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
