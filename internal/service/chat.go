// Package service implements the assistant conversation loop: one guest
// message in, tool-augmented model calls, one assistant message out.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cabanera/booking-assistant/internal/availability"
	"github.com/cabanera/booking-assistant/internal/events"
	"github.com/cabanera/booking-assistant/internal/llm"
	"github.com/cabanera/booking-assistant/internal/model"
	"github.com/cabanera/booking-assistant/internal/prompt"
	"github.com/cabanera/booking-assistant/internal/store"
	"github.com/cabanera/booking-assistant/pkg/logger"
	"github.com/cabanera/booking-assistant/pkg/metrics"
)

// ErrVenueNotFound means the chat targets an unknown venue.
var ErrVenueNotFound = errors.New("venue not found")

const (
	// settingCustomerChat selects the provider for guest-facing chat.
	settingCustomerChat = "customer_chat"

	// historyLimit caps how much conversation history is replayed per turn.
	historyLimit = 20

	// maxToolRounds bounds the tool loop within a single turn.
	maxToolRounds = 8

	// availabilityCheckLimit caps availability checks per conversation per
	// trailing hour.
	availabilityCheckLimit = 5
	availabilityWindow     = time.Hour
)

const rateLimitMessage = "Has alcanzado el límite de consultas de disponibilidad (5 por hora). Por favor espera un momento o contacta directamente por WhatsApp para más información."

// Store is the persistence surface the dispatcher needs.
type Store interface {
	GetVenue(ctx context.Context, id string) (*model.Venue, error)
	ListActivePlans(ctx context.Context, venueID string) ([]model.Plan, error)
	ListApplicableTemplates(ctx context.Context, venueID string) ([]model.MessageTemplate, error)
	GetSetting(ctx context.Context, key string) (*model.AISetting, error)
	GetConversation(ctx context.Context, id string, historyLimit int) (*model.Conversation, []model.ChatMessage, error)
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	CountRecentToolUses(ctx context.Context, conversationID, tool string, since time.Time) (int64, error)
	ListReservations(ctx context.Context, venueID string) ([]model.Reservation, error)
	ListActiveAmenities(ctx context.Context, venueID string) ([]model.Amenity, error)
	ListPlanAmenities(ctx context.Context, planID string) ([]model.Amenity, error)
	CreateEstimate(ctx context.Context, est *model.Estimate) error
}

// Completer resolves provider codes and performs model calls.
type Completer interface {
	Validate(code string) error
	CallByCode(ctx context.Context, code string, msgs []llm.Message, req llm.Request) (*llm.Response, error)
}

// conversationLocks serializes turns per conversation id so near-simultaneous
// webhook deliveries cannot interleave message appends.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*sync.Mutex)}
}

func (c *conversationLocks) get(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[id]
	if !ok {
		m = &sync.Mutex{}
		c.locks[id] = m
	}
	return m
}

// ChatService runs assistant turns.
type ChatService struct {
	store  Store
	llm    Completer
	bus    events.Publisher
	logger *logger.Logger
	locks  *conversationLocks

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewChatService creates the dispatcher. bus may be nil to disable event
// publishing.
func NewChatService(st Store, completer Completer, bus events.Publisher, log *logger.Logger) *ChatService {
	return &ChatService{
		store:  st,
		llm:    completer,
		bus:    bus,
		logger: log,
		locks:  newConversationLocks(),
		now:    time.Now,
	}
}

// HandleTurn processes one inbound guest message and returns the assistant
// reply. The inbound message is persisted before any model call, so a
// downstream failure never loses what the guest said.
func (s *ChatService) HandleTurn(ctx context.Context, input model.ChatInput) (*model.ChatResult, error) {
	venue, err := s.store.GetVenue(ctx, input.VenueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVenueNotFound
		}
		return nil, fmt.Errorf("load venue: %w", err)
	}

	plans, err := s.store.ListActivePlans(ctx, venue.ID)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	templates, err := s.store.ListApplicableTemplates(ctx, venue.ID)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	providerCode := llm.DefaultProviderCode
	if setting, err := s.store.GetSetting(ctx, settingCustomerChat); err == nil {
		providerCode = setting.ProviderCode
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load chat setting: %w", err)
	}
	if err := s.llm.Validate(providerCode); err != nil {
		return nil, err
	}

	conv, history, err := s.resolveConversation(ctx, input)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithChat("", venue.ID, conv.ID)

	lock := s.locks.get(conv.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.AppendMessage(ctx, &model.ChatMessage{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        input.Message,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	var contact *prompt.ContactInfo
	if input.ContactType != "" && input.ContactValue != "" {
		contact = &prompt.ContactInfo{Type: input.ContactType, Value: input.ContactValue}
	}
	venueContext := prompt.BuildVenueContext(venue, templates, plans)
	systemPrompt := prompt.BuildSystemPrompt(venue, venueContext, contact, s.now())

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: input.Message})

	resp, err := s.call(ctx, providerCode, msgs, llm.Request{Tools: ChatTools})
	if err != nil {
		return nil, err
	}

	var toolsUsed []string
	for round := 0; len(resp.ToolCalls) > 0 && round < maxToolRounds; round++ {
		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			result, used := s.executeTool(ctx, venue, plans, conv, input, tc)
			if used {
				toolsUsed = append(toolsUsed, tc.Name)
			}
			log.Info("tool executed", zap.String("tool", tc.Name), zap.Bool("counted", used))
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
		// Follow-up calls carry no tool catalog; the model must answer.
		resp, err = s.call(ctx, providerCode, msgs, llm.Request{})
		if err != nil {
			return nil, err
		}
	}

	assistantMsg := &model.ChatMessage{
		ConversationID: conv.ID,
		Role:           model.RoleAssistant,
		Content:        resp.Content,
		Provider:       providerCode,
		Model:          resp.Model,
		TokensUsed:     resp.Usage.TotalTokens,
	}
	if len(toolsUsed) > 0 {
		assistantMsg.Tool = toolsUsed[0]
	}
	if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	if s.bus != nil {
		s.bus.PublishMessage(ctx, venue.ID, assistantMsg)
	}
	metrics.ChatTurnsTotal.WithLabelValues(venue.ID, conv.Source).Inc()

	return &model.ChatResult{
		ConversationID: conv.ID,
		Message:        resp.Content,
		Provider:       providerCode,
		Model:          resp.Model,
		TokensUsed:     resp.Usage.TotalTokens,
	}, nil
}

// resolveConversation loads an existing conversation when the supplied id is
// a well-formed UUID that exists; anything else falls through to creating a
// fresh conversation. A malformed id is never an error.
func (s *ChatService) resolveConversation(ctx context.Context, input model.ChatInput) (*model.Conversation, []model.ChatMessage, error) {
	if input.ConversationID != "" {
		if _, err := uuid.Parse(input.ConversationID); err == nil {
			conv, history, err := s.store.GetConversation(ctx, input.ConversationID, historyLimit)
			if err == nil {
				return conv, history, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, nil, fmt.Errorf("load conversation: %w", err)
			}
		}
	}

	conv := &model.Conversation{
		VenueID:    input.VenueID,
		Source:     input.Source,
		ExternalID: input.ExternalID,
		Phone:      input.Phone,
		Name:       input.DisplayName,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("create conversation: %w", err)
	}
	metrics.ConversationsTotal.WithLabelValues(input.VenueID, input.Source).Inc()
	return conv, nil, nil
}

func (s *ChatService) call(ctx context.Context, code string, msgs []llm.Message, req llm.Request) (*llm.Response, error) {
	start := s.now()
	resp, err := s.llm.CallByCode(ctx, code, msgs, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelID := ""
	tokensIn, tokensOut := 0, 0
	if resp != nil {
		modelID = resp.Model
		tokensIn = resp.Usage.PromptTokens
		tokensOut = resp.Usage.CompletionTokens
	}
	metrics.RecordLLMCall(code, modelID, status, time.Since(start).Seconds(), tokensIn, tokensOut)
	return resp, err
}

// executeTool runs one tool call and returns its JSON result plus whether
// the call counts as a completed tool use. Tool-level failures are reported
// back to the model as {error, message} results, never as pipeline errors.
func (s *ChatService) executeTool(ctx context.Context, venue *model.Venue, plans []model.Plan, conv *model.Conversation, input model.ChatInput, tc llm.ToolCall) (string, bool) {
	var (
		result map[string]any
		used   bool
		err    error
	)
	switch tc.Name {
	case ToolCheckAvailability:
		result, used, err = s.checkAvailability(ctx, venue, plans, conv, tc.Arguments)
	case ToolGetVenueInfo:
		result, err = s.venueInfo(ctx, venue)
		used = err == nil
	case ToolGetPlans:
		result, err = s.planCatalog(ctx, plans)
		used = err == nil
	case ToolCreateEstimate:
		result, err = s.createEstimate(ctx, venue, plans, conv, input, tc.Arguments)
		used = err == nil
	default:
		result = map[string]any{"error": true, "message": fmt.Sprintf("Herramienta desconocida: %s", tc.Name)}
	}
	if err != nil {
		s.logger.Warn("tool failed", zap.String("tool", tc.Name), zap.Error(err))
		result = map[string]any{"error": true, "message": err.Error()}
		used = false
	}

	status := "ok"
	if !used {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(tc.Name, status).Inc()

	data, merr := json.Marshal(result)
	if merr != nil {
		return `{"error":true,"message":"internal error"}`, false
	}
	return string(data), used
}

type availabilityArgs struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Adults   int    `json:"adults"`
	Children int    `json:"children"`
}

func (s *ChatService) checkAvailability(ctx context.Context, venue *model.Venue, plans []model.Plan, conv *model.Conversation, rawArgs string) (map[string]any, bool, error) {
	var args availabilityArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, false, fmt.Errorf("argumentos inválidos: %w", err)
	}

	recent, err := s.store.CountRecentToolUses(ctx, conv.ID, ToolCheckAvailability, s.now().Add(-availabilityWindow))
	if err != nil {
		return nil, false, err
	}
	if recent >= availabilityCheckLimit {
		metrics.AvailabilityRateLimited.Inc()
		return map[string]any{"error": true, "message": rateLimitMessage}, false, nil
	}

	checkIn, err := time.Parse("2006-01-02", args.CheckIn)
	if err != nil {
		return map[string]any{
			"error":   true,
			"message": "La fecha de llegada no es válida. Usa el formato YYYY-MM-DD.",
		}, false, nil
	}
	checkOut := checkIn
	if args.CheckOut != "" {
		checkOut, err = time.Parse("2006-01-02", args.CheckOut)
		if err != nil {
			return map[string]any{
				"error":   true,
				"message": "La fecha de salida no es válida. Usa el formato YYYY-MM-DD.",
			}, false, nil
		}
	}

	if err := availability.ValidateRange(checkIn, checkOut, s.now()); err != nil {
		var rangeErr *availability.DateRangeError
		if errors.As(err, &rangeErr) {
			return map[string]any{
				"error":   true,
				"message": rangeErr.Message,
				"today":   rangeErr.Today,
			}, false, nil
		}
		return nil, false, err
	}

	adults := args.Adults
	if adults <= 0 {
		adults = 1
	}
	children := args.Children
	if children < 0 {
		children = 0
	}
	totalGuests := adults + children

	reservations, err := s.store.ListReservations(ctx, venue.ID)
	if err != nil {
		return nil, false, err
	}
	isAvailable := availability.IsAvailable(reservations, checkIn, checkOut)

	suitablePlans := make([]map[string]any, 0)
	for _, p := range plans {
		planMin := p.MinGuests
		if planMin <= 0 {
			planMin = 1
		}
		planMax := p.MaxCapacity
		if planMax <= 0 {
			planMax = 999
		}
		if totalGuests >= planMin && totalGuests <= planMax {
			suitablePlans = append(suitablePlans, map[string]any{
				"name":        p.Name,
				"plan_type":   p.PlanType,
				"adult_price": p.AdultPrice,
				"child_price": p.ChildPrice,
			})
		}
	}

	nextDates := make([]availability.DateOption, 0)
	if !isAvailable {
		wd := checkIn.UTC().Weekday()
		stayLength := int(checkOut.Sub(checkIn).Hours()/24) + 1
		if stayLength < 1 {
			stayLength = 1
		}
		nextDates = availability.NextAvailableDates(reservations, checkIn, availability.Options{
			NumDays:        30,
			PreferWeekends: wd == time.Saturday || wd == time.Sunday,
			StayLength:     stayLength,
		})
	}

	checkOutStr := args.CheckOut
	if checkOutStr == "" {
		checkOutStr = args.CheckIn
	}

	var message string
	switch {
	case isAvailable && len(suitablePlans) > 0:
		message = fmt.Sprintf("La cabaña está disponible para %d persona(s). Hay %d plan(es) disponible(s).", totalGuests, len(suitablePlans))
	case isAvailable:
		message = fmt.Sprintf("La cabaña está disponible pero no hay planes para %d persona(s).", totalGuests)
	default:
		message = "La cabaña no está disponible para esas fechas."
		if len(nextDates) > 0 {
			formatted := make([]string, 0, len(nextDates))
			for _, d := range nextDates {
				formatted = append(formatted, fmt.Sprintf("%s (%s)", d.Date, d.DayOfWeek))
			}
			message += fmt.Sprintf(" Fechas próximas disponibles: %s.", strings.Join(formatted, ", "))
		}
	}

	return map[string]any{
		"venue_name":           venue.Name,
		"check_in":             args.CheckIn,
		"check_out":            checkOutStr,
		"adults":               adults,
		"children":             children,
		"total_guests":         totalGuests,
		"is_available":         isAvailable,
		"suitable_plans":       suitablePlans,
		"next_available_dates": nextDates,
		"message":              message,
	}, true, nil
}

func (s *ChatService) venueInfo(ctx context.Context, venue *model.Venue) (map[string]any, error) {
	amenities, err := s.store.ListActiveAmenities(ctx, venue.ID)
	if err != nil {
		return nil, err
	}
	amenityList := make([]map[string]any, 0, len(amenities))
	for _, a := range amenities {
		amenityList = append(amenityList, map[string]any{
			"name":        a.Name,
			"description": a.Description,
			"category":    a.Category,
		})
	}
	return map[string]any{
		"name":              venue.Name,
		"address":           venue.Address,
		"city":              venue.City,
		"department":        venue.Department,
		"address_reference": venue.AddressReference,
		"whatsapp":          venue.Whatsapp,
		"instagram":         venue.Instagram,
		"wifi_ssid":         venue.WifiSSID,
		"wifi_password":     venue.WifiPassword,
		"venue_info":        venue.VenueInfo,
		"delivery_info":     venue.DeliveryInfo,
		"waze_link":         venue.WazeLink,
		"google_maps_link":  venue.GoogleMapsLink,
		"amenities":         amenityList,
	}, nil
}

func (s *ChatService) planCatalog(ctx context.Context, plans []model.Plan) (map[string]any, error) {
	planList := make([]map[string]any, 0, len(plans))
	for _, p := range plans {
		amenities, err := s.store.ListPlanAmenities(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		amenityList := make([]map[string]any, 0, len(amenities))
		for _, a := range amenities {
			amenityList = append(amenityList, map[string]any{
				"name":        a.Name,
				"description": a.Description,
			})
		}
		planList = append(planList, map[string]any{
			"id":                 p.ID,
			"name":               p.Name,
			"plan_type":          p.PlanType,
			"description":        p.Description,
			"adult_price":        p.AdultPrice,
			"child_price":        p.ChildPrice,
			"min_guests":         p.MinGuests,
			"max_capacity":       p.MaxCapacity,
			"check_in_time":      p.CheckInTime,
			"check_out_time":     p.CheckOutTime,
			"includes_food":      p.IncludesFood,
			"food_description":   p.FoodDescription,
			"includes_beverages": p.IncludesBeverages,
			"includes_overnight": p.IncludesOvernight,
			"includes_rooms":     p.IncludesRooms,
			"amenities":          amenityList,
		})
	}
	return map[string]any{"plans": planList}, nil
}

type estimateArgs struct {
	CustomerName string `json:"customer_name"`
	PlanName     string `json:"plan_name"`
	CheckIn      string `json:"check_in"`
	CheckOut     string `json:"check_out"`
	Adults       int    `json:"adults"`
	Children     int    `json:"children"`
	Notes        string `json:"notes"`
}

// matchPlan finds a plan by bidirectional case-insensitive substring match,
// first hit wins. Guests say "pasadía" for a plan named "Plan Pasadía
// Familiar" and vice versa.
func matchPlan(plans []model.Plan, name string) *model.Plan {
	needle := strings.ToLower(name)
	if needle == "" {
		return nil
	}
	for i := range plans {
		planName := strings.ToLower(plans[i].Name)
		if strings.Contains(planName, needle) || strings.Contains(needle, planName) {
			return &plans[i]
		}
	}
	return nil
}

func (s *ChatService) createEstimate(ctx context.Context, venue *model.Venue, plans []model.Plan, conv *model.Conversation, input model.ChatInput, rawArgs string) (map[string]any, error) {
	var args estimateArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("argumentos inválidos: %w", err)
	}

	matched := matchPlan(plans, args.PlanName)

	var calculatedPrice *float64
	if matched != nil {
		price := matched.AdultPrice*float64(args.Adults) + matched.ChildPrice*float64(args.Children)
		calculatedPrice = &price
	}

	var checkIn, checkOut *time.Time
	if t, err := time.Parse("2006-01-02", args.CheckIn); err == nil {
		checkIn = &t
	}
	if t, err := time.Parse("2006-01-02", args.CheckOut); err == nil {
		checkOut = &t
	} else {
		checkOut = checkIn
	}

	contactType := input.ContactType
	if contactType == "" {
		contactType = "whatsapp"
	}

	est := &model.Estimate{
		VenueID:         venue.ID,
		CustomerName:    args.CustomerName,
		ContactType:     contactType,
		ContactValue:    input.ContactValue,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Adults:          args.Adults,
		Children:        args.Children,
		CalculatedPrice: calculatedPrice,
		Notes:           args.Notes,
		ConversationID:  &conv.ID,
		Status:          model.EstimateStatusPending,
		CreatedBy:       model.EstimateCreatedByAssistant,
	}
	if matched != nil {
		est.PlanID = &matched.ID
	}
	if err := s.store.CreateEstimate(ctx, est); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.PublishEstimate(ctx, est)
	}
	metrics.EstimatesTotal.WithLabelValues(venue.ID).Inc()

	planName := args.PlanName
	if matched != nil {
		planName = matched.Name
	}
	checkOutStr := args.CheckOut
	if checkOutStr == "" {
		checkOutStr = args.CheckIn
	}

	return map[string]any{
		"success":          true,
		"estimate_id":      est.ID,
		"customer_name":    args.CustomerName,
		"plan":             planName,
		"check_in":         args.CheckIn,
		"check_out":        checkOutStr,
		"adults":           args.Adults,
		"children":         args.Children,
		"calculated_price": calculatedPrice,
		"message":          fmt.Sprintf("Cotización creada exitosamente. El cliente %s recibirá confirmación pronto.", args.CustomerName),
	}, nil
}
