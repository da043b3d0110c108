package prompt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cabanera/booking-assistant/internal/model"
)

func TestBuildVenueContextOmitsEmptySections(t *testing.T) {
	venue := &model.Venue{ID: "v1", Name: "Cabaña El Roble"}

	context := BuildVenueContext(venue, nil, nil)

	assert.Contains(t, context, "# Información de Cabaña El Roble")
	assert.NotContains(t, context, "## Ubicación")
	assert.NotContains(t, context, "## WiFi")
	assert.NotContains(t, context, "## Planes Disponibles")
	assert.NotContains(t, context, "## Respuestas Predefinidas")
}

func TestBuildVenueContextSections(t *testing.T) {
	venue := &model.Venue{
		ID:           "v1",
		Name:         "Cabaña El Roble",
		Address:      "Km 4 vía La Vega",
		City:         "La Vega",
		WifiSSID:     "ElRoble",
		WifiPassword: "bosque2024",
		Whatsapp:     "+57 300 000 0000",
		DeliveryInfo: "Domicilios de restaurantes cercanos hasta las 8pm.",
	}
	plans := []model.Plan{
		{
			Name:        "Pasadía",
			PlanType:    "day",
			AdultPrice:  80000,
			ChildPrice:  50000,
			MinGuests:   2,
			MaxCapacity: 10,
		},
	}
	templates := []model.MessageTemplate{
		{Name: "Mascotas", Content: "Aceptamos mascotas pequeñas con previo aviso."},
	}

	context := BuildVenueContext(venue, templates, plans)

	assert.Contains(t, context, "## Ubicación\nDirección: Km 4 vía La Vega\nCiudad: La Vega")
	assert.Contains(t, context, "## WiFi\nRed: ElRoble\nContraseña: bosque2024")
	assert.Contains(t, context, "WhatsApp: +57 300 000 0000")
	assert.Contains(t, context, "## Domicilios\nDomicilios de restaurantes cercanos hasta las 8pm.")
	assert.Contains(t, context, "### Pasadía")
	assert.Contains(t, context, "Precio adulto: $80000")
	assert.Contains(t, context, "Capacidad máxima: 10")
	assert.Contains(t, context, "### Mascotas\nAceptamos mascotas pequeñas con previo aviso.")
}

func TestBuildSystemPromptDateAnchoring(t *testing.T) {
	venue := &model.Venue{ID: "v1", Name: "Cabaña El Roble"}
	now := time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC) // a Saturday

	p := BuildSystemPrompt(venue, "CONTEXTO", nil, now)

	assert.Contains(t, p, `asistente virtual amable y servicial de "Cabaña El Roble"`)
	assert.Contains(t, p, "Hoy es sábado, 1 de marzo de 2025 (2025-03-01).")
	assert.Contains(t, p, "usa la fecha actual (2025-03-01) como referencia")
	assert.Contains(t, p, "asume el año 2025 o 2026")
	assert.Contains(t, p, "CONTEXTO")
	assert.NotContains(t, p, "INFORMACIÓN DEL CLIENTE")
}

func TestBuildSystemPromptContactSection(t *testing.T) {
	venue := &model.Venue{ID: "v1"}
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	p := BuildSystemPrompt(venue, "", &ContactInfo{Type: "whatsapp", Value: "+57 311 111 1111"}, now)

	assert.Contains(t, p, "INFORMACIÓN DEL CLIENTE")
	assert.Contains(t, p, "Tipo de contacto: WhatsApp")
	assert.Contains(t, p, "Contacto: +57 311 111 1111")

	// Unnamed venue falls back to the generic display name.
	assert.Contains(t, p, `"la Cabaña"`)

	instagram := BuildSystemPrompt(venue, "", &ContactInfo{Type: "instagram", Value: "@guest"}, now)
	assert.Contains(t, instagram, "Tipo de contacto: Instagram")
}
