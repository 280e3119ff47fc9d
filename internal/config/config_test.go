package config

import (
	"testing"

	"github.com/samoyed-audio/pcmio/internal/hwcompat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullOptionString(t *testing.T) {
	o, err := Parse("service=org.bluealsa,device=AA:BB:CC:DD:EE:FF,profile=a2dp,codec=sbc:ffff0205,volume=80-,softvol=true,delay=-120,hwcompat=silence")
	require.NoError(t, err)

	assert.Equal(t, "org.bluealsa", o.Service)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", o.Device)
	assert.Equal(t, ProfileA2DP, o.Profile)
	assert.Equal(t, "sbc", o.Codec.Name)
	assert.Equal(t, []byte{0xff, 0xff, 0x02, 0x05}, o.Codec.Config)
	assert.Equal(t, Volume{Level: 80, Muted: true}, o.Volume)
	assert.True(t, o.SoftVol)
	assert.Equal(t, -120, o.DelayMs)
	assert.Equal(t, hwcompat.Silence, o.HWCompat)
}

func TestParseDefaultsWhenOptionalFieldsOmitted(t *testing.T) {
	o, err := Parse("device=aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", o.Device)
	assert.Equal(t, ProfileA2DP, o.Profile)
	assert.Equal(t, hwcompat.None, o.HWCompat)
}

func TestParseRejectsMissingDevice(t *testing.T) {
	_, err := Parse("profile=a2dp")
	assert.Error(t, err)
}

func TestParseRejectsBadDeviceAddress(t *testing.T) {
	_, err := Parse("device=not-a-mac")
	assert.Error(t, err)
}

func TestParseRejectsUnknownProfile(t *testing.T) {
	_, err := Parse("device=AA:BB:CC:DD:EE:FF,profile=hfp")
	assert.Error(t, err)
}

func TestParseRejectsVolumeOutOfRange(t *testing.T) {
	_, err := Parse("device=AA:BB:CC:DD:EE:FF,volume=150")
	assert.Error(t, err)
}

func TestParseRejectsMalformedCodecConfig(t *testing.T) {
	_, err := Parse("device=AA:BB:CC:DD:EE:FF,codec=sbc:zz")
	assert.Error(t, err)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, err := Parse("device=AA:BB:CC:DD:EE:FF,bogus=1")
	assert.Error(t, err)
}

func TestParseRejectsRepeatedKey(t *testing.T) {
	_, err := Parse("device=AA:BB:CC:DD:EE:FF,device=11:22:33:44:55:66")
	assert.Error(t, err)
}

func TestParseHonorsQuotedCommaInService(t *testing.T) {
	o, err := Parse(`device=AA:BB:CC:DD:EE:FF,service="org.bluealsa,variant"`)
	require.NoError(t, err)
	assert.Equal(t, "org.bluealsa,variant", o.Service)
}

func TestVolumePlusSuffixMeansUnmuted(t *testing.T) {
	o, err := Parse("device=AA:BB:CC:DD:EE:FF,volume=50+")
	require.NoError(t, err)
	assert.Equal(t, Volume{Level: 50, Muted: false}, o.Volume)
}

func TestCodecStringRoundTrips(t *testing.T) {
	c := Codec{Name: "sbc", Config: []byte{0xab, 0xcd}}
	assert.Equal(t, "sbc:abcd", c.String())
}
