package encoder

import (
	"strconv"
	"strings"
)

// Family is a logical codec target resolved to one concrete encoder at runtime.
type Family string

const (
	H264 Family = "h264"
	H265 Family = "h265"
	VP9  Family = "vp9"
	AV1  Family = "av1"
)

// DefaultFamily is used when no codec family is configured or the configured
// value is not recognized.
const DefaultFamily = H264

// Families lists every supported codec family.
var Families = []Family{H264, H265, VP9, AV1}

// ParseFamily maps a configuration value to a Family. "hevc" is accepted as
// an alias for h265.
func ParseFamily(s string) (Family, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h264", "avc":
		return H264, true
	case "h265", "hevc":
		return H265, true
	case "vp9":
		return VP9, true
	case "av1":
		return AV1, true
	default:
		return "", false
	}
}

// Hardware backend names as printed by `ffmpeg -hwaccels`.
const (
	BackendCUDA  = "cuda"
	BackendQSV   = "qsv"
	BackendVAAPI = "vaapi"
)

// Placeholders substituted in QSV filter chains with the target frame size.
const (
	WidthPlaceholder  = "{W}"
	HeightPlaceholder = "{H}"
)

// Config describes how to drive one encoder implementation. Entries are
// built once at package init and never mutated.
type Config struct {
	Name   string
	Family Family
	// Container is the preview file extension this encoder writes.
	Container string
	// FilterChain follows the colorspace filter. When it contains
	// scale_qsv it also replaces the software scale.
	FilterChain  string
	QualityFlag  string
	QualityValue int
	Preset       string
	Profile      string
	// HWInitArgs go before -i.
	HWInitArgs []string
	ExtraArgs  []string
}

// IsHardware reports whether the encoder needs a GPU backend.
func (c Config) IsHardware() bool {
	return c.RequiredBackend() != "" || c.IsAMF()
}

// IsAMF reports whether this is an AMD AMF encoder. AMF encoders are never
// selected automatically.
func (c Config) IsAMF() bool {
	return strings.HasSuffix(c.Name, "_amf")
}

// RequiredBackend returns the hwaccel backend that must be listed for this
// encoder to be considered, or "" for software encoders.
func (c Config) RequiredBackend() string {
	switch {
	case strings.HasSuffix(c.Name, "_nvenc"):
		return BackendCUDA
	case strings.HasSuffix(c.Name, "_qsv"):
		return BackendQSV
	case strings.HasSuffix(c.Name, "_vaapi"):
		return BackendVAAPI
	default:
		return ""
	}
}

// UsesQSVScale reports whether the filter chain scales on the QSV device and
// therefore needs explicit, hardware-aligned dimensions.
func (c Config) UsesQSVScale() bool {
	return strings.Contains(c.FilterChain, "scale_qsv")
}

// Filter returns the filter chain with the size placeholders replaced.
func (c Config) Filter(width, height int) string {
	r := strings.NewReplacer(
		WidthPlaceholder, strconv.Itoa(width),
		HeightPlaceholder, strconv.Itoa(height),
	)
	return r.Replace(c.FilterChain)
}

// CodecArgs returns the video codec arguments: -c:v, quality, preset,
// profile and extras, in that order.
func (c Config) CodecArgs() []string {
	args := []string{"-c:v", c.Name}
	if c.QualityFlag != "" {
		args = append(args, c.QualityFlag, strconv.Itoa(c.QualityValue))
	}
	if c.Preset != "" {
		args = append(args, "-preset", c.Preset)
	}
	if c.Profile != "" {
		args = append(args, "-profile:v", c.Profile)
	}
	return append(args, c.ExtraArgs...)
}

const (
	qsvInit   = "qsv=hw"
	vaapiNode = "/dev/dri/renderD128"
	// QSV frames are uploaded once and scaled on the device.
	qsvChain   = "format=nv12,hwupload=extra_hw_frames=64,scale_qsv=w={W}:h={H}"
	vaapiChain = "format=nv12,hwupload"
)

var (
	qsvHWInit   = []string{"-init_hw_device", qsvInit, "-filter_hw_device", "hw"}
	vaapiHWInit = []string{"-vaapi_device", vaapiNode}
	yuv420p     = []string{"-pix_fmt", "yuv420p"}
	faststart   = []string{"-movflags", "+faststart"}
)

func join(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var configs = []Config{
	// h264
	{Name: "h264_nvenc", Family: H264, Container: "mp4", QualityFlag: "-cq", QualityValue: 23, Preset: "p4", Profile: "high", ExtraArgs: join(yuv420p, faststart)},
	{Name: "h264_qsv", Family: H264, Container: "mp4", FilterChain: qsvChain, QualityFlag: "-global_quality", QualityValue: 23, Preset: "medium", Profile: "high", HWInitArgs: qsvHWInit, ExtraArgs: faststart},
	{Name: "h264_amf", Family: H264, Container: "mp4", QualityFlag: "-qp_p", QualityValue: 23, Profile: "high", ExtraArgs: join([]string{"-quality", "balanced"}, faststart)},
	{Name: "h264_vaapi", Family: H264, Container: "mp4", FilterChain: vaapiChain, QualityFlag: "-qp", QualityValue: 23, Profile: "high", HWInitArgs: vaapiHWInit, ExtraArgs: faststart},
	{Name: "libx264", Family: H264, Container: "mp4", QualityFlag: "-crf", QualityValue: 23, Preset: "veryfast", Profile: "high", ExtraArgs: join(yuv420p, faststart)},

	// h265
	{Name: "hevc_nvenc", Family: H265, Container: "mp4", QualityFlag: "-cq", QualityValue: 28, Preset: "p4", ExtraArgs: join(yuv420p, []string{"-tag:v", "hvc1"}, faststart)},
	{Name: "hevc_qsv", Family: H265, Container: "mp4", FilterChain: qsvChain, QualityFlag: "-global_quality", QualityValue: 28, Preset: "medium", HWInitArgs: qsvHWInit, ExtraArgs: join([]string{"-tag:v", "hvc1"}, faststart)},
	{Name: "hevc_amf", Family: H265, Container: "mp4", QualityFlag: "-qp_p", QualityValue: 28, ExtraArgs: join([]string{"-quality", "balanced", "-tag:v", "hvc1"}, faststart)},
	{Name: "hevc_vaapi", Family: H265, Container: "mp4", FilterChain: vaapiChain, QualityFlag: "-qp", QualityValue: 28, Profile: "main", HWInitArgs: vaapiHWInit, ExtraArgs: join([]string{"-tag:v", "hvc1"}, faststart)},
	{Name: "libx265", Family: H265, Container: "mp4", QualityFlag: "-crf", QualityValue: 28, Preset: "fast", ExtraArgs: join(yuv420p, []string{"-tag:v", "hvc1"}, faststart)},

	// vp9
	{Name: "vp9_qsv", Family: VP9, Container: "webm", FilterChain: qsvChain, QualityFlag: "-global_quality", QualityValue: 33, HWInitArgs: qsvHWInit},
	{Name: "vp9_vaapi", Family: VP9, Container: "webm", FilterChain: vaapiChain, QualityFlag: "-global_quality", QualityValue: 33, HWInitArgs: vaapiHWInit},
	{Name: "libvpx-vp9", Family: VP9, Container: "webm", QualityFlag: "-crf", QualityValue: 33, ExtraArgs: join([]string{"-b:v", "0", "-row-mt", "1", "-deadline", "good", "-cpu-used", "4"}, yuv420p)},

	// av1
	{Name: "av1_nvenc", Family: AV1, Container: "webm", QualityFlag: "-cq", QualityValue: 32, Preset: "p4", ExtraArgs: yuv420p},
	{Name: "av1_qsv", Family: AV1, Container: "webm", FilterChain: qsvChain, QualityFlag: "-global_quality", QualityValue: 32, HWInitArgs: qsvHWInit},
	{Name: "av1_amf", Family: AV1, Container: "webm", QualityFlag: "-qp_p", QualityValue: 32, ExtraArgs: []string{"-quality", "balanced"}},
	{Name: "av1_vaapi", Family: AV1, Container: "webm", FilterChain: vaapiChain, QualityFlag: "-qp", QualityValue: 32, HWInitArgs: vaapiHWInit},
	{Name: "libsvtav1", Family: AV1, Container: "webm", QualityFlag: "-crf", QualityValue: 35, Preset: "8", ExtraArgs: yuv420p},
	{Name: "libaom-av1", Family: AV1, Container: "webm", QualityFlag: "-crf", QualityValue: 32, ExtraArgs: join([]string{"-b:v", "0", "-cpu-used", "6", "-row-mt", "1"}, yuv420p)},
}

var byName = func() map[string]Config {
	m := make(map[string]Config, len(configs))
	for _, c := range configs {
		m[c.Name] = c
	}
	return m
}()

// Lookup returns the configuration of a known encoder implementation.
func Lookup(name string) (Config, bool) {
	c, ok := byName[name]
	return c, ok
}

// PriorityList returns the candidates for a family in selection order:
// NVENC, QSV, AMF, VAAPI, then software.
func PriorityList(family Family) []Config {
	var out []Config
	for _, c := range configs {
		if c.Family == family {
			out = append(out, c)
		}
	}
	return out
}

// Names returns every known implementation name in table order.
func Names() []string {
	names := make([]string, 0, len(configs))
	for _, c := range configs {
		names = append(names, c.Name)
	}
	return names
}
