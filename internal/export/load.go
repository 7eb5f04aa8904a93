package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brice-v/digitnet/internal/model"
	"github.com/brice-v/digitnet/internal/nn"
	"github.com/brice-v/digitnet/internal/serialization"
	"github.com/brice-v/digitnet/internal/tensor"
)

// Bundle is a reloaded export.
type Bundle struct {
	Dir        string
	Header     serialization.Header
	Statistics *Statistics
	Net        *model.Network
}

// Load reloads the bundle in dir. When dir is in the middle of being
// replaced, the bundle being replaced is loaded instead.
func Load(dir string) (*Bundle, error) {
	// A swap renames dir to dir.previous, moves the new bundle in and then
	// removes dir.previous, so dir is tried again last.
	for _, candidate := range []string{dir, dir + previousSuffix, dir} {
		b, err := loadFrom(candidate)
		if !errors.Is(err, os.ErrNotExist) {
			return b, err
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoExport, dir)
}

func loadFrom(dir string) (*Bundle, error) {
	f, err := serialization.ReadFile(filepath.Join(dir, CheckpointFile), serialization.ReaderOptions{})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	if err := checkSignature(f.Header.Signature); err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}

	net, err := model.New(f.Header.Architecture, 0)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	if err := net.LoadStateDict(f.Tensors); err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}

	stats, err := ReadStatistics(filepath.Join(dir, StatisticsFile))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}

	return &Bundle{Dir: dir, Header: f.Header, Statistics: stats, Net: net}, nil
}

func checkSignature(sig *serialization.Signature) error {
	if sig == nil {
		return fmt.Errorf("%w: checkpoint has no signature", ErrUnknownSignature)
	}
	for _, name := range []string{model.InputName, model.DropoutName} {
		if _, ok := sig.Inputs[name]; !ok {
			return fmt.Errorf("%w: input %q missing from checkpoint", ErrUnknownSignature, name)
		}
	}
	if _, ok := sig.Outputs[model.OutputName]; !ok {
		return fmt.Errorf("%w: output %q missing from checkpoint", ErrUnknownSignature, model.OutputName)
	}
	return nil
}

// Lookup returns the signature entry of an input or output name.
func (b *Bundle) Lookup(name string) (serialization.TensorInfo, error) {
	if info, ok := b.Header.Signature.Inputs[name]; ok {
		return info, nil
	}
	if info, ok := b.Header.Signature.Outputs[name]; ok {
		return info, nil
	}
	return serialization.TensorInfo{}, fmt.Errorf("%w: %q", ErrUnknownSignature, name)
}

// Run evaluates the named output from named inputs. The input image batch
// is required; the dropout keep probability defaults to 1.
func (b *Bundle) Run(output string, feeds map[string]*tensor.Tensor) (*tensor.Tensor, error) {
	if _, ok := b.Header.Signature.Outputs[output]; !ok {
		return nil, fmt.Errorf("%w: output %q", ErrUnknownSignature, output)
	}

	keep := float32(1)
	var x *tensor.Tensor
	for name, t := range feeds {
		if _, ok := b.Header.Signature.Inputs[name]; !ok {
			return nil, fmt.Errorf("%w: input %q", ErrUnknownSignature, name)
		}
		switch name {
		case model.InputName:
			x = t
		case model.DropoutName:
			if t.Len() != 1 {
				return nil, fmt.Errorf("%s must be a scalar, got shape %v", name, t.Shape())
			}
			keep = t.Data()[0]
		}
	}
	if x == nil {
		return nil, fmt.Errorf("missing input %q", model.InputName)
	}
	if len(x.Shape()) != 2 || x.Dim(1) != model.Features {
		return nil, fmt.Errorf("input shape %v, want [batch, %d]", x.Shape(), model.Features)
	}
	if keep <= 0 || keep > 1 {
		return nil, fmt.Errorf("%s %g out of range (0, 1]", model.DropoutName, keep)
	}

	out := b.Net.Forward(x, keep)
	for i := 0; i < out.Dim(0); i++ {
		nn.SoftmaxInPlace(out.Row(i))
	}
	return out, nil
}
