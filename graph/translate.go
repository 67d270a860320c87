package graph

import (
	"context"
	"fmt"

	"mailbridge/utils"
)

// IDMapping pairs a volatile Exchange ID with its immutable equivalent.
type IDMapping struct {
	SourceID string
	TargetID string
}

type translateRequest struct {
	InputIDs     []string `json:"inputIds"`
	SourceIDType string   `json:"sourceIdType"`
	TargetIDType string   `json:"targetIdType"`
}

type translateResult struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

// TranslateExchangeIDs converts volatile REST IDs to immutable IDs in
// one call. Graph caps the input list at 1000 IDs per request.
func (c *Client) TranslateExchangeIDs(ctx context.Context, sourceIDs []string) ([]IDMapping, error) {
	if len(sourceIDs) == 0 {
		return nil, utils.NewIDTranslationError("no message IDs to translate", nil, nil)
	}
	body := translateRequest{
		InputIDs:     sourceIDs,
		SourceIDType: "restId",
		TargetIDType: "restImmutableEntryId",
	}
	var out collection[translateResult]
	if err := c.post(ctx, c.userPath+"/translateExchangeIds", body, &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, utils.NewGraphResponseError("translateExchangeIds returned no value array")
	}
	if len(*out.Value) == 0 {
		return nil, utils.NewIDTranslationError("translateExchangeIds returned no mappings", nil, sourceIDs)
	}
	mappings := make([]IDMapping, 0, len(*out.Value))
	for _, r := range *out.Value {
		if r.SourceID == "" || r.TargetID == "" {
			return nil, utils.NewGraphResponseError(
				fmt.Sprintf("translateExchangeIds returned incomplete mapping (source %q)", r.SourceID))
		}
		mappings = append(mappings, IDMapping{SourceID: r.SourceID, TargetID: r.TargetID})
	}
	return mappings, nil
}
