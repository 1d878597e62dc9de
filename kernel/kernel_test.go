package kernel

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allFamilies = []Family{Lucy, WendlandC2, WendlandC4, WendlandC6}

func TestKernelVanishesAtSupport(t *testing.T) {
	for _, f := range allFamilies {
		for dim := 1; dim <= 3; dim++ {
			k, err := New(f, dim)
			require.NoError(t, err)

			for _, h := range []float64{0.1, 1, 2.5} {
				w, dw := k.Eval(h, h)
				assert.Zero(t, w, "%s %dD W(h)", f, dim)
				assert.Zero(t, dw, "%s %dD dW(h)", f, dim)

				w, dw = k.Eval(1.5*h, h)
				assert.Zero(t, w)
				assert.Zero(t, dw)
			}
		}
	}
}

func TestKernelSignInsideSupport(t *testing.T) {
	const h = 1.3
	for _, f := range allFamilies {
		for dim := 1; dim <= 3; dim++ {
			k, err := New(f, dim)
			require.NoError(t, err)

			for i := 1; i < 200; i++ {
				r := h * float64(i) / 200
				w, dw := k.Eval(r, h)
				if w <= 0 {
					t.Fatalf("%s %dD: W(%g) = %g, want > 0", f, dim, r, w)
				}
				if dw >= 0 {
					t.Fatalf("%s %dD: dW(%g) = %g, want < 0", f, dim, r, dw)
				}
			}
		}
	}
}

func TestKernelNormalization(t *testing.T) {
	const (
		h = 0.7
		n = 20000
	)
	for _, f := range allFamilies {
		for dim := 1; dim <= 3; dim++ {
			k, err := New(f, dim)
			require.NoError(t, err)

			dr := h / n
			var total float64
			for i := 0; i < n; i++ {
				r := (float64(i) + 0.5) * dr
				w := k.Value(r, h)
				switch dim {
				case 1:
					total += 2 * w * dr
				case 2:
					total += 2 * math.Pi * r * w * dr
				case 3:
					total += 4 * math.Pi * r * r * w * dr
				}
			}
			assert.InDelta(t, 1.0, total, 1e-6, "%s %dD integral", f, dim)
		}
	}
}

func TestKernelGradientMatchesFiniteDifference(t *testing.T) {
	const (
		h   = 1.0
		eps = 1e-6
	)
	for _, f := range allFamilies {
		for dim := 1; dim <= 3; dim++ {
			k, _ := New(f, dim)
			for _, r := range []float64{0.1, 0.35, 0.5, 0.8, 0.95} {
				fd := (k.Value(r+eps, h) - k.Value(r-eps, h)) / (2 * eps)
				got := k.Gradient(r, h) * r
				assert.InEpsilon(t, fd, got, 1e-5, "%s %dD r=%g", f, dim, r)
			}
		}
	}
}

func TestLucy3DMatchesClosedForm(t *testing.T) {
	// (1/r) dW/dr = -105*12/(16 pi) (h-r)^2 / h^7
	k, _ := New(Lucy, 3)
	h, r := 2.0, 0.6
	want := -25.066903536973515383 * (h - r) * (h - r) / math.Pow(h, 7)
	assert.InEpsilon(t, want, k.Gradient(r, h), 1e-12)

	k1, _ := New(Lucy, 1)
	want1 := -15.0 * (h - r) * (h - r) / math.Pow(h, 5)
	assert.InEpsilon(t, want1, k1.Gradient(r, h), 1e-12)
}

func TestNewRejectsBadDimension(t *testing.T) {
	for _, dim := range []int{0, 4, -1} {
		_, err := New(Lucy, dim)
		assert.True(t, errors.Is(err, ErrDimension), "dim %d", dim)
	}
}

func TestParseFamily(t *testing.T) {
	tests := []struct {
		in   string
		want Family
		ok   bool
	}{
		{"lucy", Lucy, true},
		{"Wendland_C2", WendlandC2, true},
		{" wendland_c4 ", WendlandC4, true},
		{"wendland_c6", WendlandC6, true},
		{"cubic", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFamily(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrUnknownFamily)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetSharesFamily(t *testing.T) {
	s, err := NewSet(WendlandC4, 2)
	require.NoError(t, err)
	assert.Equal(t, WendlandC4, s.Family())
	assert.Equal(t, s.Hydro.Family(), s.Transport.Family())

	// Independent cutoffs give independent values.
	assert.NotEqual(t, s.Hydro.Gradient(0.3, 1.0), s.Transport.Gradient(0.3, 0.5))
}
