// Package prompt assembles the venue knowledge base and the system prompt
// for the booking assistant. Everything here is rebuilt on every turn from
// live venue data; nothing is memoized.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cabanera/booking-assistant/internal/model"
)

var (
	spanishDays   = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	spanishMonths = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// ContactInfo describes the inbound message channel, when known.
type ContactInfo struct {
	Type  string
	Value string
}

func venueDisplayName(venue *model.Venue) string {
	if venue.Name != "" {
		return venue.Name
	}
	return "la Cabaña"
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// BuildVenueContext renders the venue knowledge base as a markdown block.
// Sections with no source data are omitted entirely.
func BuildVenueContext(venue *model.Venue, templates []model.MessageTemplate, plans []model.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Información de %s\n\n", venueDisplayName(venue))

	if venue.Address != "" {
		b.WriteString("## Ubicación\n")
		fmt.Fprintf(&b, "Dirección: %s\n", venue.Address)
		if venue.City != "" {
			fmt.Fprintf(&b, "Ciudad: %s\n", venue.City)
		}
		if venue.Department != "" {
			fmt.Fprintf(&b, "Departamento: %s\n", venue.Department)
		}
		if venue.AddressReference != "" {
			fmt.Fprintf(&b, "Referencia: %s\n", venue.AddressReference)
		}
		if venue.WazeLink != "" {
			fmt.Fprintf(&b, "Link de Waze: %s\n", venue.WazeLink)
		}
		if venue.GoogleMapsLink != "" {
			fmt.Fprintf(&b, "Link de Google Maps: %s\n", venue.GoogleMapsLink)
		}
		b.WriteString("\n")
	}

	if venue.WifiSSID != "" || venue.WifiPassword != "" {
		b.WriteString("## WiFi\n")
		if venue.WifiSSID != "" {
			fmt.Fprintf(&b, "Red: %s\n", venue.WifiSSID)
		}
		if venue.WifiPassword != "" {
			fmt.Fprintf(&b, "Contraseña: %s\n", venue.WifiPassword)
		}
		b.WriteString("\n")
	}

	if venue.Whatsapp != "" {
		b.WriteString("## Contacto\n")
		fmt.Fprintf(&b, "WhatsApp: %s\n", venue.Whatsapp)
		if venue.Instagram != "" {
			fmt.Fprintf(&b, "Instagram: %s\n", venue.Instagram)
		}
		b.WriteString("\n")
	}

	if venue.DeliveryInfo != "" {
		b.WriteString("## Domicilios\n")
		b.WriteString(venue.DeliveryInfo)
		b.WriteString("\n\n")
	}

	if venue.VenueInfo != "" {
		b.WriteString("## Información General\n")
		b.WriteString(venue.VenueInfo)
		b.WriteString("\n\n")
	}

	if len(plans) > 0 {
		b.WriteString("## Planes Disponibles\n")
		for _, plan := range plans {
			fmt.Fprintf(&b, "### %s\n", plan.Name)
			if plan.Description != "" {
				b.WriteString(plan.Description)
				b.WriteString("\n")
			}
			if plan.PlanType != "" {
				fmt.Fprintf(&b, "Tipo: %s\n", plan.PlanType)
			}
			if plan.AdultPrice > 0 {
				fmt.Fprintf(&b, "Precio adulto: $%s\n", formatPrice(plan.AdultPrice))
			}
			if plan.ChildPrice > 0 {
				fmt.Fprintf(&b, "Precio niño: $%s\n", formatPrice(plan.ChildPrice))
			}
			if plan.CheckInTime != "" {
				fmt.Fprintf(&b, "Check-in: %s\n", plan.CheckInTime)
			}
			if plan.CheckOutTime != "" {
				fmt.Fprintf(&b, "Check-out: %s\n", plan.CheckOutTime)
			}
			if plan.MinGuests > 0 {
				fmt.Fprintf(&b, "Mínimo de personas: %d\n", plan.MinGuests)
			}
			if plan.MaxCapacity > 0 {
				fmt.Fprintf(&b, "Capacidad máxima: %d\n", plan.MaxCapacity)
			}
			if plan.FoodDescription != "" {
				fmt.Fprintf(&b, "Comida: %s\n", plan.FoodDescription)
			}
			b.WriteString("\n")
		}
	}

	if len(templates) > 0 {
		b.WriteString("## Respuestas Predefinidas\n")
		for _, template := range templates {
			fmt.Fprintf(&b, "### %s\n", template.Name)
			b.WriteString(template.Content)
			b.WriteString("\n\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildSystemPrompt renders the behavioral system prompt anchored to now so
// the model can resolve relative date expressions. The caller supplies now to
// keep the output deterministic under test.
func BuildSystemPrompt(venue *model.Venue, context string, contact *ContactInfo, now time.Time) string {
	now = now.UTC()
	dayOfWeek := spanishDays[now.Weekday()]
	currentDateStr := fmt.Sprintf("%d de %s de %d", now.Day(), spanishMonths[now.Month()-1], now.Year())
	isoDate := now.Format("2006-01-02")

	contactSection := ""
	if contact != nil {
		contactType := "Instagram"
		if contact.Type == "whatsapp" {
			contactType = "WhatsApp"
		}
		contactSection = fmt.Sprintf("\nINFORMACIÓN DEL CLIENTE:\n- Tipo de contacto: %s\n- Contacto: %s\n", contactType, contact.Value)
	}

	return fmt.Sprintf(`Eres un asistente virtual amable y servicial de "%s". Tu trabajo es responder preguntas de clientes potenciales y huéspedes sobre la propiedad.

FECHA ACTUAL: Hoy es %s, %s (%s).
%s
REGLAS IMPORTANTES:
1. AL INICIO de la conversación, SIEMPRE saluda y pregunta el nombre del cliente de forma amable.
2. Responde basándote en la información disponible. Usa las herramientas para consultar detalles específicos.
3. Sé conciso pero amable. Usa un tono cálido y profesional.
4. Cuando menciones precios, siempre indica que pueden variar según temporada y disponibilidad.
5. Responde siempre en español.

HERRAMIENTAS DISPONIBLES:
- "get_venue_info": Para consultar amenities (piscina, jacuzzi, BBQ, etc.), ubicación, WiFi
- "get_plans": Para consultar planes disponibles con precios y lo que incluyen
- "check_availability": Para verificar disponibilidad en fechas específicas
- "create_estimate": Para crear una cotización cuando el cliente quiera reservar

FLUJO DE CONVERSACIÓN:
1. Si el cliente NO ha dado su nombre, pregúntalo amablemente al inicio
2. Si preguntan por amenidades (piscina, jacuzzi, parrilla, etc.), USA la herramienta get_venue_info
3. Si preguntan por planes o precios, USA la herramienta get_plans
4. Si preguntan por disponibilidad, recolecta: fechas, adultos, niños, y luego usa check_availability
5. Si el cliente quiere CONFIRMAR/RESERVAR, verifica que tienes TODOS estos datos antes de usar create_estimate:
   - Nombre del cliente
   - Fecha(s)
   - Plan elegido
   - Cantidad de adultos
   - Cantidad de niños
   Si falta algún dato, PREGÚNTALO antes de crear la cotización.

INTERPRETACIÓN DE FECHAS:
- SIEMPRE usa la fecha actual (%s) como referencia para interpretar fechas relativas.
- Si el cliente dice "el 12 de febrero", asume el año %d o %d (el más próximo en el futuro).
- Si dice "el próximo sábado", calcula la fecha del próximo sábado desde hoy.
- Si dice "este fin de semana", calcula el próximo sábado y domingo.
- NUNCA asumas fechas en el pasado. Todas las consultas deben ser para fechas futuras.

VERIFICACIÓN DE DISPONIBILIDAD:
- Cuando el cliente pregunte por disponibilidad, usa la herramienta check_availability.
- Antes de verificar disponibilidad, asegúrate de tener:
  * La fecha de llegada (check_in)
  * La fecha de salida (check_out) - SOLO si es hospedaje/pasanoche
  * Cuántos adultos van
  * Cuántos niños van
- Si el cliente solo menciona una fecha sin especificar hospedaje, asume que es pasadía.
- Si no tienes toda la información necesaria, pregunta amablemente antes de verificar.

CONFIRMACIÓN DE RESERVA:
- NUNCA uses create_estimate sin tener TODOS los datos requeridos.
- Si el cliente dice "quiero reservar" o similar, primero verifica que tienes:
  1. Nombre del cliente
  2. Fecha de llegada
  3. Plan seleccionado
  4. Número de adultos
  5. Número de niños (puede ser 0)
- Si falta información, pregunta específicamente por lo que falta.
- Una vez creada la cotización, confirma los detalles al cliente.

%s`,
		venueDisplayName(venue),
		dayOfWeek, currentDateStr, isoDate,
		contactSection,
		isoDate, now.Year(), now.Year()+1,
		context,
	)
}
