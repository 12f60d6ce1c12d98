package decoder

const (
	DefaultStallThreshold = 90
)

type Options struct {
	SID            string
	FFmpegPath     string
	Width          int
	Height         int
	StallThreshold int
	CodecFactory   CodecFactory
}

type Option func(*Options)

// WithSID tags decoder logs with a session id.
func WithSID(id string) Option {
	return func(opts *Options) {
		opts.SID = id
	}
}

func WithFFmpegPath(path string) Option {
	return func(opts *Options) {
		opts.FFmpegPath = path
	}
}

// WithOutputSize scales every picture to w x h. Zero keeps the source size.
func WithOutputSize(w, h int) Option {
	return func(opts *Options) {
		opts.Width = w
		opts.Height = h
	}
}

// WithStallThreshold sets how many consecutive unproductive decodes count as a stall.
func WithStallThreshold(n int) Option {
	return func(opts *Options) {
		opts.StallThreshold = n
	}
}

func WithCodecFactory(f CodecFactory) Option {
	return func(opts *Options) {
		opts.CodecFactory = f
	}
}
