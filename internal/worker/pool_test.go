package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/lincircuit"
	"github.com/luxfi/lincircuit/internal/queue"
	"github.com/luxfi/lincircuit/internal/storage"
)

type fixture struct {
	enc   *lincircuit.Encryptor
	dec   *lincircuit.Decryptor
	queue *queue.MemoryQueue
	store *storage.MemoryStorage
	pool  *Pool
}

type keys struct {
	params lincircuit.Parameters
	sk     *lincircuit.SecretKey
	bsk    *lincircuit.BootstrapKey
}

var (
	keysOnce   sync.Once
	sharedKeys keys
	keysErr    error
)

// testKeys generates one key set for the package; bootstrap keys are slow to build.
func testKeys(t *testing.T) keys {
	t.Helper()
	keysOnce.Do(func() {
		params, err := lincircuit.NewParametersFromLiteral(lincircuit.PN9QP27)
		if err != nil {
			keysErr = err
			return
		}
		kgen := lincircuit.NewKeyGenerator(params)
		sk := kgen.GenSecretKey()
		sharedKeys = keys{params: params, sk: sk, bsk: kgen.GenBootstrapKey(sk)}
	})
	require.NoError(t, keysErr)
	return sharedKeys
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	k := testKeys(t)
	params, sk := k.params, k.sk

	q := queue.NewMemoryQueue(16)
	store := storage.NewMemoryStorage(64)
	t.Cleanup(func() {
		q.Close()
		store.Close()
	})

	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.PopBackoff = 10 * time.Millisecond
	pool, err := NewPool(cfg, q, store, lincircuit.NewLWEEvaluator(params, k.bsk, sk), lincircuit.Loader{})
	require.NoError(t, err)

	return &fixture{
		enc:   lincircuit.NewEncryptor(params, sk),
		dec:   lincircuit.NewDecryptor(params, sk),
		queue: q,
		store: store,
		pool:  pool,
	}
}

func (f *fixture) put(t *testing.T, cts []*lincircuit.Ciphertext) string {
	t.Helper()
	data, err := lincircuit.MarshalCiphertexts(cts)
	require.NoError(t, err)
	h, err := f.store.Store(context.Background(), data)
	require.NoError(t, err)
	return string(h)
}

func (f *fixture) get(t *testing.T, h string) []*lincircuit.Ciphertext {
	t.Helper()
	data, err := f.store.Load(context.Background(), storage.Handle(h))
	require.NoError(t, err)
	cts, err := lincircuit.UnmarshalCiphertexts(data)
	require.NoError(t, err)
	return cts
}

func nibble(t *testing.T) lincircuit.Encoding {
	coeffs := make([]uint64, 16)
	for i := range coeffs {
		coeffs[i] = uint64(i)
	}
	enc, err := lincircuit.NewCanonicalEncoding(16, coeffs, 17)
	require.NoError(t, err)
	return enc
}

func TestNewPoolRejectsZeroWorkers(t *testing.T) {
	_, err := NewPool(Config{}, nil, nil, nil, lincircuit.Loader{})
	require.Error(t, err)
}

func TestRunExecute(t *testing.T) {
	f := newFixture(t)

	cts, err := f.enc.EncryptBytes([]byte{0xdb, 0x13, 0x53, 0x45})
	require.NoError(t, err)

	job := &queue.Job{ID: "mix", Kind: queue.KindExecute, Circuit: lincircuit.CircuitMixColumns, InputHandle: f.put(t, cts)}
	h, err := f.pool.Run(context.Background(), job)
	require.NoError(t, err)

	got, err := f.dec.DecryptBytes(f.get(t, string(h)))
	require.NoError(t, err)
	require.Equal(t, []byte{0x8e, 0x4d, 0xa1, 0xbc}, got)
}

func TestRunDecomposeRecompose(t *testing.T) {
	f := newFixture(t)
	enc := nibble(t)

	values := []uint64{0, 5, 10, 15}
	cts := make([]*lincircuit.Ciphertext, len(values))
	for i, v := range values {
		ct, err := f.enc.Encrypt(v, enc)
		require.NoError(t, err)
		cts[i] = ct
	}

	bitsHandle, err := f.pool.Run(context.Background(), &queue.Job{
		ID:          "split",
		Kind:        queue.KindDecompose,
		InputHandle: f.put(t, cts),
	})
	require.NoError(t, err)

	bits := f.get(t, string(bitsHandle))
	require.Len(t, bits, 4*len(values))
	plain, err := f.dec.DecryptBits(bits)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 0, 0, 0, 0, 1, 0, 1, 1, 0, 1, 0, 1, 1, 1, 1}, plain)

	target, err := enc.MarshalBinary()
	require.NoError(t, err)
	packedHandle, err := f.pool.Run(context.Background(), &queue.Job{
		ID:             "pack",
		Kind:           queue.KindRecompose,
		InputHandle:    string(bitsHandle),
		TargetEncoding: target,
	})
	require.NoError(t, err)

	for i, ct := range f.get(t, string(packedHandle)) {
		v, err := f.dec.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, values[i], v)
	}
}

func TestRunFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bits, err := f.enc.EncryptBytes([]byte{0x01})
	require.NoError(t, err)
	input := f.put(t, bits[:3])

	tests := []struct {
		name    string
		job     *queue.Job
		wantErr error
	}{
		{"unknown circuit", &queue.Job{Kind: queue.KindExecute, Circuit: "sbox", InputHandle: input}, lincircuit.ErrUnknownCircuit},
		{"arity", &queue.Job{Kind: queue.KindExecute, Circuit: lincircuit.CircuitMixColumns, InputHandle: input}, lincircuit.ErrArityMismatch},
		{"partial group", &queue.Job{Kind: queue.KindRecompose, InputHandle: input, TargetEncoding: mustMarshal(t, nibble(t))}, lincircuit.ErrArityMismatch},
		{"no target", &queue.Job{Kind: queue.KindRecompose, InputHandle: input}, lincircuit.ErrInvalidEncoding},
		{"missing input", &queue.Job{Kind: queue.KindExecute, InputHandle: string(storage.ComputeHandle(nil))}, storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pool.Run(ctx, tt.job)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = f.pool.Run(ctx, &queue.Job{Kind: "shuffle", InputHandle: input})
	require.Error(t, err)
}

func mustMarshal(t *testing.T, enc lincircuit.Encoding) []byte {
	data, err := enc.MarshalBinary()
	require.NoError(t, err)
	return data
}

func TestPoolProcessesQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cts, err := f.enc.EncryptBytes([]byte{0xf2, 0x0a, 0x22, 0x5c})
	require.NoError(t, err)
	input := f.put(t, cts)

	require.NoError(t, f.pool.Start(ctx))
	require.Error(t, f.pool.Start(ctx))

	require.NoError(t, f.queue.Push(ctx, &queue.Job{ID: "ok", Kind: queue.KindExecute, Circuit: lincircuit.CircuitMixColumns, InputHandle: input}))
	require.NoError(t, f.queue.Push(ctx, &queue.Job{ID: "bad", Kind: queue.KindExecute, Circuit: "sbox", InputHandle: input}))

	require.Eventually(t, func() bool {
		return f.pool.SuccessCount() == 1 && f.pool.FailureCount() == 1
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, f.pool.Stop())

	ok, err := f.queue.Get(ctx, "ok")
	require.NoError(t, err)
	require.Equal(t, queue.StatusCompleted, ok.Status)
	got, err := f.dec.DecryptBytes(f.get(t, ok.ResultHandle))
	require.NoError(t, err)
	require.Equal(t, []byte{0x9f, 0xdc, 0x58, 0x9d}, got)

	bad, err := f.queue.Get(ctx, "bad")
	require.NoError(t, err)
	require.Equal(t, queue.StatusFailed, bad.Status)
	require.Contains(t, bad.Error, "unknown circuit")
}
