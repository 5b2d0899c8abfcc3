package backup

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionConfig selects optional artifact compression
type CompressionConfig struct {
	Algorithm CompressionType `mapstructure:"algorithm" yaml:"algorithm"`
	Level     int             `mapstructure:"level" yaml:"level"`
}

// SetDefaults fills in the algorithm and a per-algorithm level
func (cc *CompressionConfig) SetDefaults() {
	cc.Algorithm = CompressionType(strings.ToUpper(string(cc.Algorithm)))
	if cc.Algorithm == "" {
		cc.Algorithm = CompressionTypeNone
	}
	if cc.Level == 0 {
		if codec, ok := codecs[cc.Algorithm]; ok {
			cc.Level = codec.defaultLevel
		}
	}
}

// Validate validates the CompressionConfig
func (cc *CompressionConfig) Validate() error {
	var errs ValidationErrors

	if cc.Algorithm == CompressionTypeNone || cc.Algorithm == "" {
		return nil
	}
	codec, ok := codecs[cc.Algorithm]
	if !ok {
		errs.Add("algorithm", "invalid compression algorithm, must be NONE, GZIP, LZ4 or ZSTD", cc.Algorithm)
		return errs
	}
	if cc.Level < codec.minLevel || cc.Level > codec.maxLevel {
		errs.Add("level", fmt.Sprintf("%s level must be between %d and %d",
			strings.ToLower(string(cc.Algorithm)), codec.minLevel, codec.maxLevel), cc.Level)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

type codec struct {
	extension    string
	contentType  string
	minLevel     int
	maxLevel     int
	defaultLevel int
	encode       func(data []byte, level int) ([]byte, error)
	decode       func(data []byte) ([]byte, error)
}

var codecs = map[CompressionType]codec{
	CompressionTypeGzip: {
		extension: ".gz", contentType: "application/gzip",
		minLevel: gzip.BestSpeed, maxLevel: gzip.BestCompression, defaultLevel: 6,
		encode: gzipEncode, decode: gzipDecode,
	},
	CompressionTypeZstd: {
		extension: ".zst", contentType: "application/zstd",
		minLevel: 1, maxLevel: 22, defaultLevel: 3,
		encode: zstdEncode, decode: zstdDecode,
	},
	CompressionTypeLZ4: {
		extension: ".lz4", contentType: "application/x-lz4",
		minLevel: 1, maxLevel: 9, defaultLevel: 1,
		encode: lz4Encode, decode: lz4Decode,
	},
}

// Compressor applies the configured algorithm to serialized artifacts
type Compressor struct {
	algorithm CompressionType
	level     int
}

// NewCompressor returns a compressor for config. NONE yields a pass-through.
func NewCompressor(config CompressionConfig) (*Compressor, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, NewCompressionError("invalid compression configuration", err)
	}
	return &Compressor{algorithm: config.Algorithm, level: config.Level}, nil
}

// Algorithm returns the configured algorithm
func (c *Compressor) Algorithm() CompressionType {
	if c == nil {
		return CompressionTypeNone
	}
	return c.algorithm
}

// Extension is appended to artifact file names
func (c *Compressor) Extension() string {
	if codec, ok := codecs[c.Algorithm()]; ok {
		return codec.extension
	}
	return ""
}

// ContentType of the bytes returned by Compress
func (c *Compressor) ContentType() string {
	if codec, ok := codecs[c.Algorithm()]; ok {
		return codec.contentType
	}
	return ContentTypeJSON
}

// Compress encodes data with the configured algorithm
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	codec, ok := codecs[c.Algorithm()]
	if !ok {
		return data, nil
	}
	out, err := codec.encode(data, c.level)
	if err != nil {
		return nil, NewCompressionError(fmt.Sprintf("%s compression failed", c.algorithm), err)
	}
	return out, nil
}

// Decompress reverses Compress
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	codec, ok := codecs[c.Algorithm()]
	if !ok {
		return data, nil
	}
	out, err := codec.decode(data)
	if err != nil {
		return nil, NewCompressionError(fmt.Sprintf("%s decompression failed", c.algorithm), err)
	}
	return out, nil
}

func gzipEncode(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func zstdEncode(data []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func zstdDecode(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

func lz4Encode(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if level > 1 && level < len(lz4Levels) {
		if err := w.Apply(lz4.CompressionLevelOption(lz4Levels[level])); err != nil {
			return nil, err
		}
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decode(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}
