package extract

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/common"
)

const sniffLen = 512

// Classify picks the extraction format for an upload.
// A filename extension wins when present; otherwise the declared content type is used,
// and an absent or generic content type falls back to sniffing the leading bytes.
func Classify(filename, contentType string, data []byte) (constants.Format, error) {
	if ext := constants.NormalizeExt(filepath.Ext(filename)); ext != "" {
		if f := constants.MapExtToFormat(ext); f != "" {
			return f, nil
		}
		return "", common.UnsupportedFileType(fmt.Sprintf("extension %q is not supported", ext))
	}

	mt := constants.NormalizeMIME(contentType)
	if mt != "" && mt != "application/octet-stream" {
		if f := constants.MapMIMEToFormat(mt); f != "" {
			return f, nil
		}
		return "", common.UnsupportedFileType(fmt.Sprintf("content type %q is not supported", mt))
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	sniffed := constants.NormalizeMIME(http.DetectContentType(head))
	if f := constants.MapMIMEToFormat(sniffed); f != "" {
		return f, nil
	}
	return "", common.UnsupportedFileType(fmt.Sprintf("detected content type %q is not supported", sniffed))
}
