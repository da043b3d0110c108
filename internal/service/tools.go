package service

import (
	"github.com/cabanera/booking-assistant/internal/llm"
)

// Tool names the assistant can invoke.
const (
	ToolCheckAvailability = "check_availability"
	ToolGetVenueInfo      = "get_venue_info"
	ToolGetPlans          = "get_plans"
	ToolCreateEstimate    = "create_estimate"
)

// ChatTools is the fixed tool catalog handed to the model on the first call
// of every turn. Descriptions are guest-language Spanish so the model picks
// tools consistently with the system prompt.
var ChatTools = []llm.Tool{
	{
		Name:        ToolCheckAvailability,
		Description: "Verifica la disponibilidad de la cabaña para fechas específicas y cantidad de personas. Usar cuando el cliente pregunte si hay disponibilidad.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"check_in": map[string]any{
					"type":        "string",
					"description": "Fecha de llegada en formato YYYY-MM-DD",
				},
				"check_out": map[string]any{
					"type":        "string",
					"description": "Fecha de salida en formato YYYY-MM-DD. Si es pasadía, usar la misma fecha que check_in.",
				},
				"adults": map[string]any{
					"type":        "integer",
					"description": "Número de adultos",
				},
				"children": map[string]any{
					"type":        "integer",
					"description": "Número de niños",
				},
			},
			"required": []string{"check_in", "adults"},
		},
	},
	{
		Name:        ToolGetVenueInfo,
		Description: "Obtiene información detallada del venue/cabaña incluyendo amenities, ubicación, WiFi, y otras características. Usar cuando el cliente pregunte sobre piscina, jacuzzi, parrilla, u otras amenidades.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	},
	{
		Name:        ToolGetPlans,
		Description: "Obtiene todos los planes disponibles con sus precios, capacidades, horarios, comidas incluidas y amenities específicos de cada plan.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	},
	{
		Name:        ToolCreateEstimate,
		Description: "Crea una cotización/reserva tentativa cuando el cliente confirma su interés. Solo usar cuando tienes TODOS los datos requeridos: nombre del cliente, fecha check_in, plan, adultos, niños.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"customer_name": map[string]any{
					"type":        "string",
					"description": "Nombre completo del cliente",
				},
				"plan_name": map[string]any{
					"type":        "string",
					"description": "Nombre del plan seleccionado (pasadía, pasanoche, hospedaje, etc.)",
				},
				"check_in": map[string]any{
					"type":        "string",
					"description": "Fecha de llegada en formato YYYY-MM-DD",
				},
				"check_out": map[string]any{
					"type":        "string",
					"description": "Fecha de salida en formato YYYY-MM-DD. Si es pasadía, usar la misma fecha que check_in.",
				},
				"adults": map[string]any{
					"type":        "integer",
					"description": "Número de adultos",
				},
				"children": map[string]any{
					"type":        "integer",
					"description": "Número de niños",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Notas adicionales o solicitudes especiales del cliente",
				},
			},
			"required": []string{"customer_name", "plan_name", "check_in", "adults"},
		},
	},
}
