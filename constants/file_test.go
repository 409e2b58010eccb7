package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, "pdf", NormalizeExt(".PDF"))
	assert.Equal(t, "jpeg", NormalizeExt("JPEG"))
	assert.Equal(t, "", NormalizeExt("."))
}

func TestMapExtToFormat(t *testing.T) {
	assert.Equal(t, PDF, MapExtToFormat(".pdf"))
	assert.Equal(t, IMAGE, MapExtToFormat(".JPG"))
	assert.Equal(t, IMAGE, MapExtToFormat("webp"))
	assert.Equal(t, "", MapExtToFormat(".docx"))
}

func TestIsImageContentTypeWinsOverExtension(t *testing.T) {
	assert.True(t, IsImage("blob", "image/jpeg"))
	assert.True(t, IsImage("scan.png", ""))
	assert.False(t, IsImage("doc.pdf", "application/pdf"))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("blob", "application/pdf"))
	assert.True(t, IsPDF("doc.PDF", ""))
	assert.False(t, IsPDF("scan.jpg", "image/jpeg"))
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", MimeTypeFor("doc.pdf"))
	assert.Equal(t, "image/jpeg", MimeTypeFor("photo.JPG"))
	assert.Equal(t, "application/octet-stream", MimeTypeFor("archive.xyz"))
}
