package flash

import (
	"testing"
	"time"

	"github.com/WeebLabs/DSPi-Console/internal/protocol"
	"github.com/WeebLabs/DSPi-Console/sdk/contracts"
	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...contracts.Field)  {}
func (nopLogger) Error(string, ...contracts.Field) {}
func (nopLogger) Debug(string, ...contracts.Field) {}
func (nopLogger) Warn(string, ...contracts.Field)  {}
func (nopLogger) Fatal(string, ...contracts.Field) {}
func (nopLogger) Field() contracts.Field           { return nopField{} }
func (nopLogger) SetLevel(contracts.LogLevel)      {}

type nopField struct{}

func (f nopField) Bool(string, bool) contracts.Field       { return f }
func (f nopField) Int(string, int) contracts.Field         { return f }
func (f nopField) Float64(string, float64) contracts.Field { return f }
func (f nopField) String(string, string) contracts.Field   { return f }
func (f nopField) Time(string, time.Time) contracts.Field  { return f }
func (f nopField) Int64(string, int64) contracts.Field     { return f }
func (f nopField) Error(string, error) contracts.Field     { return f }
func (f nopField) Uint64(string, uint64) contracts.Field   { return f }
func (f nopField) Uint8(string, uint8) contracts.Field     { return f }

type fakeRequester struct {
	result  byte
	absent  bool
	gets    []uint8
	setSeen bool
}

func (r *fakeRequester) SendSet(uint8, uint16, []byte) { r.setSeen = true }

func (r *fakeRequester) SendGet(req uint8, _ uint16, _ int) ([]byte, bool) {
	r.gets = append(r.gets, req)
	if r.absent {
		return nil, false
	}
	return []byte{r.result}, true
}

type fakeState struct{ state contracts.ConnectionState }

func (s fakeState) State() contracts.ConnectionState { return s.state }

type fakeStore struct{ fetches int }

func (s *fakeStore) FetchAll() error {
	s.fetches++
	return nil
}

func newRelay(req *fakeRequester, state contracts.ConnectionState, store *fakeStore) *Relay {
	return New(req, fakeState{state}, store, nopLogger{})
}

func TestLoadSuccessResyncsExactlyOnce(t *testing.T) {
	req := &fakeRequester{result: byte(contracts.FlashOK)}
	store := &fakeStore{}
	r := newRelay(req, contracts.Connected, store)

	assert.Equal(t, contracts.FlashOK, r.Load())
	assert.Equal(t, 1, store.fetches)
	assert.Equal(t, []uint8{protocol.ReqFlashLoad}, req.gets)
}

func TestFailedLoadDoesNotResync(t *testing.T) {
	for _, result := range []contracts.FlashResult{
		contracts.FlashWriteError,
		contracts.FlashNoData,
		contracts.FlashCRCError,
	} {
		req := &fakeRequester{result: byte(result)}
		store := &fakeStore{}
		r := newRelay(req, contracts.Connected, store)

		assert.Equal(t, result, r.Load())
		assert.Equal(t, 0, store.fetches)
	}
}

func TestSaveNeverResyncs(t *testing.T) {
	req := &fakeRequester{result: byte(contracts.FlashOK)}
	store := &fakeStore{}
	r := newRelay(req, contracts.Connected, store)

	assert.Equal(t, contracts.FlashOK, r.Save())
	assert.Equal(t, 0, store.fetches)
}

func TestFactoryResetResyncsOnSuccess(t *testing.T) {
	req := &fakeRequester{result: byte(contracts.FlashOK)}
	store := &fakeStore{}
	r := newRelay(req, contracts.Connected, store)

	assert.Equal(t, contracts.FlashOK, r.FactoryReset())
	assert.Equal(t, 1, store.fetches)
	assert.Equal(t, []uint8{protocol.ReqFactoryReset}, req.gets)
}

func TestDisconnectedFailsWithoutTransfer(t *testing.T) {
	req := &fakeRequester{result: byte(contracts.FlashOK)}
	store := &fakeStore{}
	r := newRelay(req, contracts.Disconnected, store)

	assert.Equal(t, contracts.FlashWriteError, r.Save())
	assert.Equal(t, contracts.FlashWriteError, r.Load())
	assert.Equal(t, contracts.FlashWriteError, r.FactoryReset())
	assert.Empty(t, req.gets)
	assert.Equal(t, 0, store.fetches)
}

func TestTransferFailureIsWriteError(t *testing.T) {
	req := &fakeRequester{absent: true}
	store := &fakeStore{}
	r := newRelay(req, contracts.Connected, store)

	assert.Equal(t, contracts.FlashWriteError, r.Load())
	assert.Equal(t, 0, store.fetches)
}
