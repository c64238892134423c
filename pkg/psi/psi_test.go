package psi

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/optable/psi-bfv/internal/fhemock"
)

// spread maps small sequential test integers onto a wide 16-bit range via
// a bijective multiplicative hash, so that encoded bucket slots (which
// discard their low bucketCountLog bits as the bucket index itself) still
// carry enough entropy to distinguish items the way real hashed
// identifiers would. Using 1, 2, 3, ... directly would collapse distinct
// items onto the same encoding once bucketCountLog exceeds their bit
// width.
func spread(v uint64) uint64 {
	return (v * 40503) & 0xffff
}

func uint64Set(vs ...uint64) []uint64 {
	out := make([]uint64, len(vs))
	for i, v := range vs {
		out[i] = spread(v)
	}
	return out
}

func sortedCopy(vs []uint64) []uint64 {
	out := append([]uint64(nil), vs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func intersect(a, b []uint64) []uint64 {
	set := make(map[uint64]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []uint64
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return sortedCopy(out)
}

// run wires a Receiver and Sender together against a fhemock.Engine and
// returns the Receiver's computed intersection, resolved from the matched
// bucket indices DecryptMatches returns via the inputs slice EncryptInputs
// rewrote in place.
func run(t *testing.T, receiverValues, senderValues []uint64) []uint64 {
	t.Helper()
	ctx := context.Background()

	params, err := NewParams(uint64(len(receiverValues)), uint64(len(senderValues)), 16)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	slots := 8
	engine := fhemock.New(params.PlainModulus(), slots)

	receiver, err := NewReceiver(ctx, params, engine)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	senderParams := *params
	if err := senderParams.SetSeeds(seedSlice(receiver.Seeds())); err != nil {
		t.Fatalf("SetSeeds: %v", err)
	}
	sender := NewSender(&senderParams, engine)

	inputs := append([]uint64(nil), receiverValues...)
	receiverCts, err := receiver.EncryptInputs(ctx, &inputs)
	if err != nil {
		t.Fatalf("EncryptInputs: %v", err)
	}
	if uint64(len(inputs)) != params.BucketCount() {
		t.Fatalf("EncryptInputs left inputs at length %d, want bucket_count %d", len(inputs), params.BucketCount())
	}

	resultCts, err := sender.ComputeMatches(ctx, senderValues, receiver.PublicKey(), receiver.RelinKeys(), receiverCts, nil)
	if err != nil {
		t.Fatalf("ComputeMatches: %v", err)
	}

	buckets, err := receiver.DecryptMatches(ctx, resultCts)
	if err != nil {
		t.Fatalf("DecryptMatches: %v", err)
	}

	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			t.Fatalf("matched bucket indices not strictly increasing: %v", buckets)
		}
	}

	matches := make([]uint64, len(buckets))
	for i, b := range buckets {
		matches[i] = inputs[b]
	}
	return sortedCopy(matches)
}

func seedSlice(s [Nhash]uint64) []uint64 { return s[:] }

func TestIntersectionScenarios(t *testing.T) {
	scenarios := []struct {
		scenario string
		receiver []uint64
		sender   []uint64
	}{
		{
			scenario: "no overlap",
			receiver: uint64Set(1, 2, 3, 4),
			sender:   uint64Set(100, 101, 102),
		},
		{
			scenario: "full overlap",
			receiver: uint64Set(10, 20, 30),
			sender:   uint64Set(10, 20, 30),
		},
		{
			scenario: "partial overlap",
			receiver: uint64Set(1, 2, 3, 4, 5),
			sender:   uint64Set(3, 4, 5, 6, 7),
		},
		{
			scenario: "empty sender set",
			receiver: uint64Set(1, 2, 3),
			sender:   uint64Set(),
		},
		{
			scenario: "single element match",
			receiver: uint64Set(42),
			sender:   uint64Set(42),
		},
		{
			scenario: "zero value item matches",
			receiver: uint64Set(0, 5, 9),
			sender:   uint64Set(0, 7),
		},
	}

	for _, sc := range scenarios {
		sc := sc
		t.Run(sc.scenario, func(t *testing.T) {
			got := run(t, sc.receiver, sc.sender)
			want := intersect(sc.receiver, sc.sender)
			if len(got) != len(want) {
				t.Fatalf("%s: got %v, want %v", sc.scenario, got, want)
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("%s: got %v, want %v", sc.scenario, got, want)
				}
			}
		})
	}
}

func TestDecryptMatchesBeforeEncryptInputs(t *testing.T) {
	ctx := context.Background()
	params, err := NewParams(4, 4, 16)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	engine := fhemock.New(params.PlainModulus(), 8)
	receiver, err := NewReceiver(ctx, params, engine)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	if _, err := receiver.DecryptMatches(ctx, nil); err == nil {
		t.Fatalf("expected an error calling DecryptMatches before EncryptInputs")
	}
}

func TestEncryptInputsLengthMismatch(t *testing.T) {
	ctx := context.Background()
	params, err := NewParams(4, 4, 16)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	engine := fhemock.New(params.PlainModulus(), 8)
	receiver, err := NewReceiver(ctx, params, engine)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	wrong := uint64Set(1, 2, 3) // receiver_size is 4, not 3
	if _, err := receiver.EncryptInputs(ctx, &wrong); !errors.Is(err, ErrParameterMismatch) {
		t.Fatalf("expected ErrParameterMismatch, got %v", err)
	}
}

func TestComputeMatchesLengthMismatch(t *testing.T) {
	ctx := context.Background()
	receiverValues := uint64Set(1, 2, 3, 4)
	senderValues := uint64Set(1, 2, 3)

	params, err := NewParams(uint64(len(receiverValues)), uint64(len(senderValues)), 16)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	engine := fhemock.New(params.PlainModulus(), 8)

	receiver, err := NewReceiver(ctx, params, engine)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}
	senderParams := *params
	if err := senderParams.SetSeeds(seedSlice(receiver.Seeds())); err != nil {
		t.Fatalf("SetSeeds: %v", err)
	}
	sender := NewSender(&senderParams, engine)

	inputs := append([]uint64(nil), receiverValues...)
	receiverCts, err := receiver.EncryptInputs(ctx, &inputs)
	if err != nil {
		t.Fatalf("EncryptInputs: %v", err)
	}

	if _, err := sender.ComputeMatches(ctx, append(senderValues, 0), receiver.PublicKey(), receiver.RelinKeys(), receiverCts, nil); !errors.Is(err, ErrParameterMismatch) {
		t.Fatalf("expected ErrParameterMismatch for wrong sender input length, got %v", err)
	}
	if _, err := sender.ComputeMatches(ctx, senderValues, receiver.PublicKey(), receiver.RelinKeys(), receiverCts[:len(receiverCts)-1], nil); !errors.Is(err, ErrParameterMismatch) {
		t.Fatalf("expected ErrParameterMismatch for wrong receiver ciphertext count, got %v", err)
	}
}

func TestSeedMismatchProducesNoMatches(t *testing.T) {
	ctx := context.Background()
	receiverValues := uint64Set(1, 2, 3)
	senderValues := uint64Set(1, 2, 3)

	params, err := NewParams(uint64(len(receiverValues)), uint64(len(senderValues)), 16)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	engine := fhemock.New(params.PlainModulus(), 8)

	receiver, err := NewReceiver(ctx, params, engine)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	senderParams := *params
	// deliberately install the wrong seeds, rather than the Receiver's.
	if err := senderParams.SetSeeds([]uint64{1, 2, 3}); err != nil {
		t.Fatalf("SetSeeds: %v", err)
	}
	sender := NewSender(&senderParams, engine)

	inputs := append([]uint64(nil), receiverValues...)
	receiverCts, err := receiver.EncryptInputs(ctx, &inputs)
	if err != nil {
		t.Fatalf("EncryptInputs: %v", err)
	}
	resultCts, err := sender.ComputeMatches(ctx, senderValues, receiver.PublicKey(), receiver.RelinKeys(), receiverCts, nil)
	if err != nil {
		t.Fatalf("ComputeMatches: %v", err)
	}
	matches, err := receiver.DecryptMatches(ctx, resultCts)
	if err != nil {
		t.Fatalf("DecryptMatches: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches under mismatched seeds, got %v", matches)
	}
}
