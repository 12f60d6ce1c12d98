package emulator

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bugVanisher/berrycam/common/errs"
	"github.com/bugVanisher/berrycam/media/av"
	"github.com/bugVanisher/berrycam/media/codec/h264parser"
)

// Sample is one encoded frame served by the emulator.
type Sample struct {
	Data     []byte
	KeyFrame bool
}

// Source yields samples in a loop. Implementations are safe for concurrent use.
type Source interface {
	Codec() av.CodecType
	// Sample returns the i-th sample, wrapping around.
	Sample(i uint64) Sample
	Len() int
}

type memorySource struct {
	codec   av.CodecType
	samples []Sample
}

// NewMemorySource serves fixed samples.
func NewMemorySource(codec av.CodecType, samples ...Sample) Source {
	return &memorySource{codec: codec, samples: samples}
}

func (s *memorySource) Codec() av.CodecType {
	return s.codec
}

func (s *memorySource) Sample(i uint64) Sample {
	return s.samples[i%uint64(len(s.samples))]
}

func (s *memorySource) Len() int {
	return len(s.samples)
}

// NewJPEGDirSource loads every .jpg/.jpeg file in dir, sorted by name.
func NewJPEGDirSource(dir string) (Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrInvalidConfig, "read dir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".jpg" || ext == ".jpeg") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var samples []Sample
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, errs.Wrapf(errs.ErrInvalidConfig, "read %s: %v", name, err)
		}
		samples = append(samples, Sample{Data: data, KeyFrame: true})
	}
	if len(samples) == 0 {
		return nil, errs.Wrapf(errs.ErrInvalidConfig, "no jpeg files in %s", dir)
	}
	return NewMemorySource(av.CodecMJPEG, samples...), nil
}

// NewH264FileSource splits an Annex-B file into access units.
func NewH264FileSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrInvalidConfig, "read %s: %v", path, err)
	}
	var samples []Sample
	collect := func(au []byte, key bool) {
		samples = append(samples, Sample{Data: append([]byte(nil), au...), KeyFrame: key})
	}
	s := h264parser.NewAUSplitter()
	s.Write(data, collect)
	s.Flush(collect)
	if len(samples) == 0 {
		return nil, errs.Wrapf(errs.ErrNoVideoStream, "no access units in %s", path)
	}
	return NewMemorySource(av.CodecH264, samples...), nil
}
