package psi

// NoiseObserver is an optional hook the Sender calls after computing each
// power on the power ladder, after accumulating a block's polynomial, and
// after masking it, replacing the debug global
// secret-key leak in the original implementation (spec.md Design Notes
// §9) with an explicit, opt-in collaborator. A nil NoiseObserver disables
// all reporting and costs nothing.
type NoiseObserver interface {
	// ReportNoise is called with the stage name ("power", "accumulate",
	// "mask"), the power-ladder exponent ("power") or block index
	// ("accumulate", "mask") it occurred at, and the ciphertext produced.
	ReportNoise(stage string, index int, ct Ciphertext)
}

// DecryptingNoiseObserver is a NoiseObserver that decrypts every reported
// ciphertext with a held secret key and hands the recovered plaintext
// slots to Report. It exists purely for development and test
// instrumentation; production callers should pass a nil NoiseObserver.
type DecryptingNoiseObserver struct {
	Engine Engine
	SK     SecretKey
	Report func(stage string, index int, slots []uint64)
}

func (o *DecryptingNoiseObserver) ReportNoise(stage string, index int, ct Ciphertext) {
	if o.Report == nil {
		return
	}
	pt, err := o.Engine.DecryptNew(o.SK, ct)
	if err != nil {
		return
	}
	slots, err := o.Engine.Decode(pt)
	if err != nil {
		return
	}
	o.Report(stage, index, slots)
}
