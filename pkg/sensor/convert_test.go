package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

func accelCoefficient(t *testing.T) *Coefficient {
	t.Helper()
	for _, c := range DefaultCoefficients() {
		if c.TypeID == TypeAccelerometer {
			return &c
		}
	}
	t.Fatal("no accelerometer coefficient")
	return nil
}

func TestConvertAccelerometer(t *testing.T) {
	c := accelCoefficient(t)

	got := c.Convert([]int32{1000, -500, 0})
	require.Len(t, got, 3)
	assert.InDelta(t, Gravity, got[0], 1e-4)
	assert.InDelta(t, -Gravity/2, got[1], 1e-4)
	assert.Zero(t, got[2])
}

func TestConvertRoundTrip(t *testing.T) {
	for _, c := range DefaultCoefficients() {
		t.Run(c.TypeID.String(), func(t *testing.T) {
			raw := []int32{12345, -678, 9, 0, 42, -1}
			assert.Equal(t, raw, c.Raw(c.Convert(raw)))
		})
	}
}

func TestConvertNilCoefficient(t *testing.T) {
	var c *Coefficient
	assert.Equal(t, []float32{1, -2, 3}, c.Convert([]int32{1, -2, 3}))
	assert.Equal(t, []int32{1, -2}, c.Raw([]float32{1.2, -1.6}))
}

func TestConvertUnmappedAxis(t *testing.T) {
	c := &Coefficient{Dimension: 3, Scale: [MaxDimension]float32{2, 0, 4}}
	assert.Equal(t, []float32{2, 1, 4, 4, 1, 8}, c.Convert([]int32{1, 1, 1, 2, 1, 2}))
}

func TestConvertOversizedDimension(t *testing.T) {
	c := &Coefficient{Dimension: 8, Scale: [MaxDimension]float32{2, 2, 2, 2, 2, 2}}
	got := c.Convert([]int32{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12, 14, 16}, got)
}

func TestValidateCoefficients(t *testing.T) {
	require.NoError(t, ValidateCoefficients(DefaultCoefficients()))
	require.NoError(t, ValidateCoefficients(nil))

	tests := []struct {
		name   string
		coeffs []Coefficient
	}{
		{"dimension too large", []Coefficient{{TypeID: TypeHall, Dimension: MaxDimension + 1}}},
		{"negative dimension", []Coefficient{{TypeID: TypeHall, Dimension: -1}}},
		{"duplicate type", []Coefficient{{TypeID: TypeHall, Dimension: 1}, {TypeID: TypeHall, Dimension: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoefficients(tt.coeffs)
			assert.Equal(t, wire.StatusInvalidParameter, wire.StatusOf(err))
		})
	}
}

func TestConvertEmpty(t *testing.T) {
	c := accelCoefficient(t)
	assert.Empty(t, c.Convert(nil))
}

func TestNormalize(t *testing.T) {
	t.Run("accelerometer", func(t *testing.T) {
		r := record("accel", TypeAccelerometer, 1)
		r.MaxRange = AccelLSB * 4
		r.Accuracy = AccelLSB / 2
		r.Power = 250

		info := Normalize(r)
		assert.InDelta(t, 4*Gravity, info.MaxRange, 1e-4)
		assert.InDelta(t, Gravity/2, info.Accuracy, 1e-4)
		assert.InDelta(t, 0.25, info.Power, 1e-6)
		assert.Equal(t, "accel", info.Name)
		assert.Equal(t, "acme", info.Vendor)
		assert.Equal(t, int32(1), info.SensorID)
	})

	t.Run("other types unchanged", func(t *testing.T) {
		r := record("light", TypeAmbientLight, 5)
		info := Normalize(r)
		assert.Equal(t, float32(100), info.MaxRange)
		assert.Equal(t, float32(1), info.Accuracy)
		assert.Equal(t, float32(5), info.Power)
	})
}

func TestBindCoefficients(t *testing.T) {
	infos := []Info{
		{SensorID: 10, TypeID: TypeGyroscope},
		{SensorID: 11, TypeID: TypeProximity},
		{SensorID: 12, TypeID: TypeGyroscope},
	}

	got := bindCoefficients(DefaultCoefficients(), infos)
	require.Len(t, got, 2)
	assert.Equal(t, int32(10), got[0].SensorID)
	assert.Equal(t, int32(12), got[1].SensorID)
	assert.Equal(t, got[0].Scale, got[1].Scale)
}

func TestGroupOf(t *testing.T) {
	tests := []struct {
		id   int32
		want GroupType
	}{
		{0, GroupTraditional},
		{127, GroupTraditional},
		{MedicalBegin, GroupMedical},
		{MedicalEnd - 1, GroupMedical},
		{MedicalEnd, GroupTraditional},
		{-1, GroupTraditional},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GroupOf(tt.id), "id %d", tt.id)
	}
}

func TestTypeIDParse(t *testing.T) {
	for _, typ := range []TypeID{TypeAccelerometer, TypePhotoplethysmograph, TypeHumidity} {
		got, err := ParseTypeID(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseTypeID("TYPE(7)")
	assert.Error(t, err)
	_, err = ParseTypeID("FLUX")
	assert.Error(t, err)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "SET_BATCH", SubSetBatch.String())
	assert.Equal(t, "SUB(9)", SubCommand(9).String())
	assert.Equal(t, "MEDICAL", GroupMedical.String())
	assert.Equal(t, "GROUP(5)", GroupType(5).String())
	assert.Equal(t, "TYPE(7)", TypeID(7).String())
}
