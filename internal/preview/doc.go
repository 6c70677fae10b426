/*
Package preview produces the bandwidth-reduced preview shown in place of an
upload's original.

  - Image: resized to at most 1280 pixels wide and encoded as WEBP quality
    90. Always kept; Scale is the width ratio in percent.
  - Animated: compressed with gifsicle (APNG converted to GIF first). If the
    result is not smaller than the source it is deleted and Scale is nil.
  - Video: transcoded with the encoder the [encoder.Registry] selects, audio
    re-encoded to Opus. If the result is not smaller than the source it is
    deleted and Scale is 100. With video previews disabled nothing is run and
    Scale is 100 with no extension.

The two "not worth keeping" signals differ between animated and video on
purpose; callers rely on both.
*/
package preview
