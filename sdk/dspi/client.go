package dspi

import (
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
)

// NewConsoleClient creates a new DSP client with the specified options.
// It applies default options and initializes the client.
//
// opts ...contracts.Option: A variadic list of option functions to customize the client configuration.
//
// Returns:
//   - contracts.ClientDSP: An instance of the DSP client.
//   - error: An error, if any occurred during the creation of the client.
func NewConsoleClient(opts ...contracts.Option) (contracts.ClientDSP, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(&options)
	if err != nil {
		return nil, err
	}

	return client, nil
}
