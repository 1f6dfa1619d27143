package decoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"

	"gymcheckin/internal/domain"
)

// NativeName identifies the zbar strategy.
const NativeName = "native"

// DefaultZbarBinary is looked up on PATH when no explicit path is configured.
const DefaultZbarBinary = "zbarimg"

// zbarimg exits with 4 when the image holds no symbol.
const zbarNoSymbols = 4

type nativeDecoder struct {
	bin string
}

// NativeProbe returns a probe that succeeds when the zbarimg binary can be
// found at bin (or on PATH when bin is empty).
func NativeProbe(bin string) domain.DecoderProbe {
	if bin == "" {
		bin = DefaultZbarBinary
	}
	return func() (domain.Decoder, error) {
		path, err := exec.LookPath(bin)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecoderUnavailable, bin, err)
		}
		return &nativeDecoder{bin: path}, nil
	}
}

func (d *nativeDecoder) Name() string { return NativeName }

func (d *nativeDecoder) TryDecode(ctx context.Context, frame image.Image) (string, bool, error) {
	f, err := os.CreateTemp("", "frame-*.png")
	if err != nil {
		return "", false, fmt.Errorf("create frame file: %w", err)
	}
	defer os.Remove(f.Name())

	if err := png.Encode(f, frame); err != nil {
		f.Close()
		return "", false, fmt.Errorf("encode frame: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", false, fmt.Errorf("write frame: %w", err)
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, d.bin, "--quiet", "--raw", f.Name())
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == zbarNoSymbols {
			return "", false, nil
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("%w: %v", domain.ErrDecoderUnavailable, err)
		}
		return "", false, fmt.Errorf("run %s: %w", d.bin, err)
	}
	return firstLine(stdout.Bytes())
}

func firstLine(out []byte) (string, bool, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, true, nil
		}
	}
	return "", false, sc.Err()
}

// Probes returns the probes named in order ("native", "library"). Unknown
// names are ignored.
func Probes(names []string, zbarPath string) []domain.DecoderProbe {
	var out []domain.DecoderProbe
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case NativeName:
			out = append(out, NativeProbe(zbarPath))
		case LibraryName:
			out = append(out, LibraryProbe)
		}
	}
	return out
}
