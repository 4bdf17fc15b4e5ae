package api

import (
	"encoding/json"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"oppwapay/internal/models"
	"oppwapay/internal/payment"
)

const maskedValue = "********"

// SettingsHandler reads and writes per-event provider settings.
type SettingsHandler struct {
	repos    *Repos
	registry *payment.Registry
	logger   *zap.Logger
}

func NewSettingsHandler(repos *Repos, registry *payment.Registry, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{repos: repos, registry: registry, logger: logger}
}

// Handle routes settings API requests.
// POST /api/settings
func (h *SettingsHandler) Handle(c echo.Context) error {
	action, raw, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "set_setting":
		var req models.SetProviderSettingRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return errorResponse(c, "Invalid request body")
		}
		return h.setSetting(c, req)
	case "settings":
		var req models.ProviderSettingsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return errorResponse(c, "Invalid request body")
		}
		return h.getSettings(c, req)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

// validSettingName accepts the keys the provider config reader understands.
func validSettingName(name string) bool {
	switch name {
	case "_enabled", "access_token", "endpoint", "entityId":
		return true
	}
	return (strings.HasPrefix(name, "entityId_") && len(name) > len("entityId_")) ||
		(strings.HasPrefix(name, "method_") && len(name) > len("method_"))
}

func (h *SettingsHandler) setSetting(c echo.Context, req models.SetProviderSettingRequest) error {
	ctx := c.Request().Context()
	if _, ok := h.registry.Get(req.Brand); !ok {
		return errorResponse(c, "Unknown brand: "+req.Brand)
	}
	if !validSettingName(req.Name) {
		return errorResponse(c, "Unknown setting: "+req.Name)
	}
	if req.Name == "endpoint" && req.Value != string(payment.EndpointLive) && req.Value != string(payment.EndpointTest) {
		return errorResponse(c, "endpoint must be live or test")
	}

	event, err := h.repos.Orders.FindEventBySlug(ctx, req.Event)
	if err != nil {
		return errorResponse(c, "Event not found")
	}
	if err := h.repos.Settings.Set(ctx, event.ID, req.Brand, req.Name, req.Value); err != nil {
		h.logger.Error("Failed to store setting",
			zap.String("brand", req.Brand), zap.String("name", req.Name), zap.Error(err))
		return errorResponse(c, "Failed to store setting")
	}
	return successResponse(c, "Successful", nil)
}

// getSettings lists the stored settings of a brand with the access token
// masked, together with the providers and whether they can take payments.
func (h *SettingsHandler) getSettings(c echo.Context, req models.ProviderSettingsRequest) error {
	ctx := c.Request().Context()
	brand, ok := h.registry.Get(req.Brand)
	if !ok {
		return errorResponse(c, "Unknown brand: "+req.Brand)
	}
	event, err := h.repos.Orders.FindEventBySlug(ctx, req.Event)
	if err != nil {
		return errorResponse(c, "Event not found")
	}

	rows, err := h.repos.Settings.GetAll(ctx, event.ID, brand.Identifier)
	if err != nil {
		h.logger.Error("Failed to load settings", zap.String("brand", brand.Identifier), zap.Error(err))
		return errorResponse(c, "Failed to load settings")
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.Name == "access_token" && row.Value != "" {
			values[row.Name] = maskedValue
			continue
		}
		values[row.Name] = row.Value
	}

	cfg, err := h.repos.Settings.ProviderConfig(ctx, event.ID, brand.Identifier)
	if err != nil {
		return errorResponse(c, "Failed to load settings")
	}
	providers := make([]map[string]interface{}, 0)
	for _, prov := range brand.Providers() {
		providers = append(providers, map[string]interface{}{
			"identifier": prov.Identifier(),
			"name":       prov.Name(),
			"brands":     prov.Brands(),
			"enabled":    prov.IsEnabled(cfg),
			"usable":     prov.IsUsable(cfg, event.Testmode),
		})
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"settings":      values,
		"entity_id_key": brand.EntityIDSettingKey(),
		"providers":     providers,
	})
}
