package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/my21staff/SarahEngine/internal/models"
)

// scanConversationState scans one conversation_states row. The column order
// must match selectStateColumns.
const selectStateColumns = "contact_phone, state, extracted_data, lead_score, lead_temperature, language, message_count, version, updated_at"

func scanConversationState(row *sql.Row) (*models.ConversationState, error) {
	var st models.ConversationState
	var stateStr, tempStr, langStr string
	var extractedJSON string
	var updatedAt time.Time
	err := row.Scan(&st.ContactPhone, &stateStr, &extractedJSON, &st.LeadScore, &tempStr, &langStr, &st.MessageCount, &st.Version, &updatedAt)
	if err != nil {
		return nil, err
	}

	state, err := models.ParseFunnelState(stateStr)
	if err != nil {
		return nil, fmt.Errorf("stored funnel state invalid for %s: %w", st.ContactPhone, err)
	}
	st.State = state
	temp, err := models.ParseLeadTemperature(tempStr)
	if err != nil {
		return nil, fmt.Errorf("stored lead temperature invalid for %s: %w", st.ContactPhone, err)
	}
	st.LeadTemperature = temp
	lang, err := models.ParseLanguage(langStr)
	if err != nil {
		return nil, fmt.Errorf("stored language invalid for %s: %w", st.ContactPhone, err)
	}
	st.Language = lang

	if extractedJSON != "" {
		if err := json.Unmarshal([]byte(extractedJSON), &st.ExtractedData); err != nil {
			return nil, fmt.Errorf("failed to parse extracted data for %s: %w", st.ContactPhone, err)
		}
	}
	st.UpdatedAt = updatedAt
	return &st, nil
}

// marshalExtractedData serializes the extracted slots for a JSON/TEXT column.
func marshalExtractedData(data models.ExtractedData) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal extracted data: %w", err)
	}
	return string(raw), nil
}
