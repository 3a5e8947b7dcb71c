package handler

import (
	"net/http"

	"github.com/craftauth/yggdrasil/internal/http/response"
	"github.com/craftauth/yggdrasil/internal/texture"
)

// MetaHandler serves the root metadata document game launchers probe to
// discover the server's capabilities and signature key.
type MetaHandler struct {
	serverName  string
	version     string
	skinDomains []string
	signer      *texture.Signer
}

func NewMetaHandler(serverName, version string, skinDomains []string, signer *texture.Signer) *MetaHandler {
	return &MetaHandler{serverName: serverName, version: version, skinDomains: skinDomains, signer: signer}
}

type metaDocument struct {
	Meta               map[string]string `json:"meta"`
	SkinDomains        []string          `json:"skinDomains"`
	SignaturePublickey string            `json:"signaturePublickey,omitempty"`
}

func (h *MetaHandler) Home(w http.ResponseWriter, r *http.Request) {
	doc := metaDocument{
		Meta: map[string]string{
			"serverName":            h.serverName,
			"implementationName":    "yggdrasil",
			"implementationVersion": h.version,
		},
		SkinDomains:        h.skinDomains,
		SignaturePublickey: h.signer.PublicKeyPEM(),
	}
	response.JSON(w, r, http.StatusOK, doc)
}
