/*
Package encoder discovers which ffmpeg video encoders work on this host and
picks one per codec family.

# Capability Snapshot

A [Registry] asks ffmpeg for its encoder list (`ffmpeg -encoders`) and its
hardware acceleration backends (`ffmpeg -hwaccels`) the first time either is
needed. Each command runs at most once per Registry; the parsed sets, or the
error, are kept for the life of the process.

# Selection

[Registry.SelectEncoder] walks the family's priority list:

	h264: h264_nvenc, h264_qsv, h264_amf, h264_vaapi, libx264
	h265: hevc_nvenc, hevc_qsv, hevc_amf, hevc_vaapi, libx265
	vp9:  vp9_qsv, vp9_vaapi, libvpx-vp9
	av1:  av1_nvenc, av1_qsv, av1_amf, av1_vaapi, libsvtav1, libaom-av1

NVENC needs the cuda backend, QSV needs qsv and VAAPI needs vaapi. AMF is
always skipped. A candidate must also appear in the encoder list and pass a
one second test encode. The first candidate that passes is cached for the
family; a failed selection is not cached.

Setting VIDEO_ENCODER to a known implementation name skips all of this and
always returns that encoder.
*/
package encoder
