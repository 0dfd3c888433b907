package inference

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Provider selects the ONNX Runtime execution provider for a session.
type Provider string

const (
	// ProviderCPU runs on the default CPU provider.
	ProviderCPU Provider = "cpu"
	// ProviderCUDA runs on NVIDIA GPUs through the CUDA provider.
	ProviderCUDA Provider = "cuda"
	// ProviderCoreML runs on Apple hardware through the CoreML provider.
	ProviderCoreML Provider = "coreml"
	// ProviderOpenVINO runs on Intel hardware through the OpenVINO provider.
	ProviderOpenVINO Provider = "openvino"
)

// ParseProvider normalizes a provider name. The empty string selects the
// CPU provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderCPU, nil
	case ProviderCPU, ProviderCUDA, ProviderCoreML, ProviderOpenVINO:
		return p, nil
	default:
		return "", errors.Errorf("unknown execution provider %q", s)
	}
}

// applyProvider appends the configured execution provider to the session
// options. The CPU provider is the runtime default and needs no append.
// Appending fails when the installed onnxruntime library was built without
// that provider.
func applyProvider(opts *ort.SessionOptions, cfg RuntimeConfig) error {
	switch cfg.Provider {
	case ProviderCPU:
		return nil
	case ProviderCUDA:
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "create cuda provider options")
		}
		defer cudaOpts.Destroy()
		err = cudaOpts.Update(map[string]string{
			"device_id": strconv.Itoa(cfg.DeviceID),
		})
		if err != nil {
			return errors.Wrap(err, "update cuda provider options")
		}
		return errors.Wrap(opts.AppendExecutionProviderCUDA(cudaOpts), "append cuda provider")
	case ProviderCoreML:
		return errors.Wrap(opts.AppendExecutionProviderCoreML(0), "append coreml provider")
	case ProviderOpenVINO:
		return errors.Wrap(opts.AppendExecutionProviderOpenVINO(map[string]string{}), "append openvino provider")
	default:
		return errors.Errorf("unknown execution provider %q", cfg.Provider)
	}
}
