package constants

// ReextractConfidenceThreshold is the OCR confidence below which a second,
// vision-based extraction pass runs. Exactly 0.8 does not trigger it.
const ReextractConfidenceThreshold = 0.8

// MaxFileSize caps uploads, matching the document processor's own limit.
const MaxFileSize = 10 * 1024 * 1024

// MaxVisionUploadBytes is the largest image payload sent to a vision provider.
// Larger images are downscaled and re-encoded before the call.
const MaxVisionUploadBytes = 5 * 1024 * 1024

// ThumbnailSize is the max edge length of generated thumbnails, in pixels.
const ThumbnailSize = 150

// MaxOverflowFields caps the free-form key/value fields kept from model output.
const MaxOverflowFields = 20

// MaxParseChars caps the extracted text handed to the parse prompt.
const MaxParseChars = 12000
