package modem

import (
	"errors"
	"fmt"
)

// SchemeID names a modulation scheme.
type SchemeID string

const (
	AMDSBLC SchemeID = "am_dsb_lc"
	AMDSBSC SchemeID = "am_dsb_sc"
	FM      SchemeID = "fm"
	PM      SchemeID = "pm"
	ASK     SchemeID = "ask"
	FSK     SchemeID = "fsk"
	BPSK    SchemeID = "bpsk"
	QPSK    SchemeID = "qpsk"
	QAM16   SchemeID = "qam16"
)

// Family groups schemes the way the scheme picker presents them.
type Family string

const (
	FamilyAmplitude Family = "amplitude"
	FamilyAngle     Family = "angle"
	FamilyDigital   Family = "digital"
)

var (
	// ErrUnsupportedScheme is wrapped by every SchemeError.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrMismatchedArrays reports a baseband whose length differs from the time base.
	ErrMismatchedArrays = errors.New("mismatched time/baseband arrays")
)

// SchemeError reports a scheme id the requested engine does not know.
type SchemeError struct {
	Kind string // "analog", "digital" or empty
	ID   SchemeID
}

func (e *SchemeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("unsupported scheme %q", e.ID)
	}
	return fmt.Sprintf("unsupported %s scheme %q", e.Kind, e.ID)
}

func (e *SchemeError) Unwrap() error {
	return ErrUnsupportedScheme
}

// Descriptor carries the display metadata of a scheme.
type Descriptor struct {
	ID             SchemeID `json:"id"`
	Label          string   `json:"label"`
	Family         Family   `json:"family"`
	Digital        bool     `json:"digital"`
	ModulationEq   string   `json:"modulationEq"`
	DemodulationEq string   `json:"demodulationEq"`
}

var registry = []Descriptor{
	{
		ID:             AMDSBLC,
		Label:          "AM DSB-LC (Conventional AM)",
		Family:         FamilyAmplitude,
		ModulationEq:   `s(t) = A_c [1 + \mu \cdot m_n(t)] \cos(2\pi f_c t)`,
		DemodulationEq: `\hat{m}(t) \approx \text{LPF}\{|r(t)|\} - \text{DC}`,
	},
	{
		ID:             AMDSBSC,
		Label:          "AM DSB-SC",
		Family:         FamilyAmplitude,
		ModulationEq:   `s(t) = A_c \cdot m_n(t) \cdot \cos(2\pi f_c t)`,
		DemodulationEq: `\hat{m}(t) = \text{LPF}\{2 r(t) \cos(2\pi f_{rx} t + \phi_{rx})\}`,
	},
	{
		ID:             FM,
		Label:          "Frequency Modulation (FM)",
		Family:         FamilyAngle,
		ModulationEq:   `s(t) = A_c \cos\left(2\pi f_c t + 2\pi k_f \int m_n(t)\,dt\right)`,
		DemodulationEq: `\hat{m}(t) = \frac{f_{inst}(t) - f_{rx}}{k_f}, \quad f_{inst} = \frac{1}{2\pi}\frac{d\phi}{dt}`,
	},
	{
		ID:             PM,
		Label:          "Phase Modulation (PM)",
		Family:         FamilyAngle,
		ModulationEq:   `s(t) = A_c \cos(2\pi f_c t + k_p \cdot m_n(t))`,
		DemodulationEq: `\hat{m}(t) = \frac{\phi(t) - 2\pi f_{rx} t}{k_p}`,
	},
	{
		ID:             ASK,
		Label:          "ASK (Binary)",
		Family:         FamilyDigital,
		Digital:        true,
		ModulationEq:   `s(t) = A_c [a_0 + a_1 \cdot b(k)] \cos(2\pi f_c t)`,
		DemodulationEq: `\hat{b}(k) = \text{threshold}\left\{\int r(t) \cos(2\pi f_{rx} t + \phi_{rx})\,dt\right\}`,
	},
	{
		ID:             FSK,
		Label:          "FSK (Binary)",
		Family:         FamilyDigital,
		Digital:        true,
		ModulationEq:   `s(t) = A_c \cos(2\pi f_i t), \quad f_i \in \{f_c-\Delta f/2, f_c+\Delta f/2\}`,
		DemodulationEq: `\hat{b}(k) = \arg\max_i \left|\int r(t) e^{-j 2\pi f_{i,rx} t}\,dt\right|^2`,
	},
	{
		ID:             BPSK,
		Label:          "BPSK",
		Family:         FamilyDigital,
		Digital:        true,
		ModulationEq:   `s(t) = A_c \cos(2\pi f_c t + \pi(1-b(k)))`,
		DemodulationEq: `\hat{b}(k) = \text{sign}\left\{\int r(t) \cos(2\pi f_{rx} t + \phi_{rx})\,dt\right\}`,
	},
	{
		ID:             QPSK,
		Label:          "QPSK",
		Family:         FamilyDigital,
		Digital:        true,
		ModulationEq:   `s(t) = A_c[I_k \cos(2\pi f_c t) - Q_k \sin(2\pi f_c t)]`,
		DemodulationEq: `\hat{I}, \hat{Q} \text{ from coherent I/Q integrators}`,
	},
	{
		ID:             QAM16,
		Label:          "16-QAM",
		Family:         FamilyDigital,
		Digital:        true,
		ModulationEq:   `s(t) = A_c[I_k \cos(2\pi f_c t) - Q_k \sin(2\pi f_c t)], \quad I,Q \in \{-3,-1,1,3\}`,
		DemodulationEq: `\text{Nearest-neighbor symbol decision in I/Q plane}`,
	},
}

// Schemes returns every known scheme in display order.
func Schemes() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the descriptor for id.
func Lookup(id SchemeID) (Descriptor, error) {
	for _, d := range registry {
		if d.ID == id {
			return d, nil
		}
	}
	return Descriptor{}, &SchemeError{ID: id}
}

// IsDigital reports whether id names a known digital scheme.
func IsDigital(id SchemeID) bool {
	d, err := Lookup(id)
	return err == nil && d.Digital
}

// SymbolSamples returns the samples per symbol for a scheme given the
// samples per bit.
func SymbolSamples(id SchemeID, bitSamples int) int {
	switch id {
	case QPSK:
		return 2 * bitSamples
	case QAM16:
		return 4 * bitSamples
	default:
		return bitSamples
	}
}

// modulationOrder is the power that strips data modulation from the carrier
// phase.
func modulationOrder(id SchemeID) int {
	switch id {
	case BPSK:
		return 2
	case QPSK, QAM16:
		return 4
	default:
		return 1
	}
}
