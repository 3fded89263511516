// Command webcamrng-nist writes a NIST SP800-90B test file by popping
// blocks off the shared buffer (refilling as needed), in either binary or
// ASCII-text format, resuming from an existing file's size across restarts
// (spec.md §6).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	_ "github.com/joho/godotenv/autoload"

	"github.com/vinith200527/webcamrng/internal/config"
	"github.com/vinith200527/webcamrng/internal/logging"
	"github.com/vinith200527/webcamrng/internal/rngcontext"
)

var cli struct {
	Bits   int64  `help:"Total number of bits to generate." required:""`
	Format string `help:"Output format: binary or text." enum:"binary,text" default:"binary"`
	Out    string `help:"Output file base name (a format-specific extension is appended)." default:"nist_data"`
}

func main() {
	kong.Parse(&cli)

	cfg, err := config.New()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Logging)

	rc, err := rngcontext.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("nist: failed to build rng context")
	}
	defer rc.Close()

	path := cli.Out + extensionFor(cli.Format)
	mode := os.O_CREATE | os.O_WRONLY | os.O_APPEND

	bitsGenerated, err := existingBitCount(path, cli.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("nist: failed to stat existing output file")
	}
	if bitsGenerated > 0 {
		log.Info().Int64("bits", bitsGenerated).Str("file", path).Msg("nist: resuming from existing file")
	}
	if bitsGenerated >= cli.Bits {
		log.Info().Msg("nist: target bit count already generated, nothing to do")
		return
	}

	f, err := os.OpenFile(path, mode, 0o644)
	if err != nil {
		log.Fatal().Err(err).Msg("nist: failed to open output file")
	}
	defer f.Close()

	ctx := context.Background()
	for bitsGenerated < cli.Bits {
		hexVal, ok := rc.Buffer.Pop()
		if !ok {
			if err := rc.Buffer.RefillSync(ctx); err != nil {
				log.Fatal().Err(err).Msg("nist: refill failed while buffer was empty")
			}
			hexVal, ok = rc.Buffer.Pop()
			if !ok {
				log.Fatal().Msg("nist: refill produced no blocks; cannot make progress")
			}
		}

		written, err := writeBlock(f, hexVal, cli.Format)
		if err != nil {
			log.Fatal().Err(err).Msg("nist: failed writing block")
		}
		if err := f.Sync(); err != nil {
			log.Warn().Err(err).Msg("nist: fsync failed")
		}
		bitsGenerated += written

		fmt.Fprintf(os.Stdout, "\rprogress: %d/%d bits", bitsGenerated, cli.Bits)
	}
	fmt.Fprintln(os.Stdout)
	log.Info().Int64("bits", bitsGenerated).Str("file", path).Msg("nist: generation complete")
}

func extensionFor(format string) string {
	if format == "binary" {
		return ".bin"
	}
	return ".txt"
}

func existingBitCount(path, format string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if format == "binary" {
		return info.Size() * 8, nil
	}
	return info.Size(), nil
}

func writeBlock(f *os.File, hexVal, format string) (int64, error) {
	if format == "binary" {
		raw, err := hex.DecodeString(hexVal)
		if err != nil {
			return 0, err
		}
		if _, err := f.Write(raw); err != nil {
			return 0, err
		}
		return int64(len(raw) * 8), nil
	}

	bits := hexToBinaryASCII(hexVal)
	if _, err := f.Write([]byte(bits)); err != nil {
		return 0, err
	}
	return int64(len(bits)), nil
}

// hexToBinaryASCII converts a hex string to its four-character-per-nibble
// ASCII '0'/'1' representation, MSB first, matching spec.md §6's text
// format.
func hexToBinaryASCII(hexVal string) string {
	out := make([]byte, 0, len(hexVal)*4)
	for _, c := range hexVal {
		var nibble byte
		switch {
		case c >= '0' && c <= '9':
			nibble = byte(c - '0')
		case c >= 'a' && c <= 'f':
			nibble = byte(c-'a') + 10
		case c >= 'A' && c <= 'F':
			nibble = byte(c-'A') + 10
		default:
			continue
		}
		for bit := 3; bit >= 0; bit-- {
			if nibble&(1<<uint(bit)) != 0 {
				out = append(out, '1')
			} else {
				out = append(out, '0')
			}
		}
	}
	return string(out)
}
