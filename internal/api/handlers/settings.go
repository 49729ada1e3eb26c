package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tryon-ai/tryon/pkg/types"
)

// Vault is the credential store behind CredentialHandler.
type Vault interface {
	Save(ctx context.Context, name, plaintext string) error
	Remove(ctx context.Context, name string) error
	Configured(ctx context.Context, name string) bool
}

// PreferenceStore is the preference namespace behind PreferenceHandler.
type PreferenceStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, value string) error
	List(ctx context.Context) (map[string]string, error)
}

var knownCredentials = map[string]bool{
	types.CredentialVLAPIKey:    true,
	types.CredentialImageAPIKey: true,
}

type valueBody struct {
	Value string `json:"value"`
}

// CredentialHandler handles credential requests. Plaintext is accepted but
// never returned.
type CredentialHandler struct {
	vault Vault
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(vault Vault) *CredentialHandler {
	return &CredentialHandler{vault: vault}
}

// Put stores a credential. An empty value clears it.
func (h *CredentialHandler) Put(c *gin.Context) {
	name := c.Param("name")
	if !knownCredentials[name] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown credential"})
		return
	}

	var body valueBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.vault.Save(c.Request.Context(), name, body.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "configured": h.vault.Configured(c.Request.Context(), name)})
}

// Get reports whether a credential is configured.
func (h *CredentialHandler) Get(c *gin.Context) {
	name := c.Param("name")
	if !knownCredentials[name] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown credential"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "configured": h.vault.Configured(c.Request.Context(), name)})
}

// Delete clears a credential.
func (h *CredentialHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if !knownCredentials[name] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown credential"})
		return
	}

	if err := h.vault.Remove(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "configured": false})
}

// PreferenceHandler handles preference requests.
type PreferenceHandler struct {
	prefs PreferenceStore
}

// NewPreferenceHandler creates a new PreferenceHandler.
func NewPreferenceHandler(prefs PreferenceStore) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

// List returns every stored preference merged over the defaults.
func (h *PreferenceHandler) List(c *gin.Context) {
	stored, err := h.prefs.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	prefs := types.PreferenceDefaults()
	for k, v := range stored {
		prefs[k] = v
	}
	c.JSON(http.StatusOK, prefs)
}

// Get returns one preference, or its default.
func (h *PreferenceHandler) Get(c *gin.Context) {
	key := c.Param("key")
	if !types.IsPreference(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown preference"})
		return
	}

	value, ok, err := h.prefs.Get(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		value = types.PreferenceDefaults()[key]
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// Put stores one preference.
func (h *PreferenceHandler) Put(c *gin.Context) {
	key := c.Param("key")
	if !types.IsPreference(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown preference"})
		return
	}

	var body valueBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !types.ValidPreference(key, body.Value) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for " + key})
		return
	}

	if err := h.prefs.Set(c.Request.Context(), key, body.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": body.Value})
}
