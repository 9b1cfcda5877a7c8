package endpoints

import (
	"net/http"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/claimdoc/internal/api"
	"github.com/jackzampolin/claimdoc/internal/prompts"
)

// PromptsListResponse contains the per-page instructions in page order.
type PromptsListResponse struct {
	Prompts []prompts.PagePrompt `json:"prompts"`
}

// ListPromptsEndpoint handles GET /v1/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		List page prompts
//	@Description	The extraction instruction sent with each page image
//	@Tags			prompts
//	@Produce		json
//	@Success		200	{object}	PromptsListResponse
//	@Router			/v1/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	all := prompts.All()
	resp := PromptsListResponse{Prompts: make([]prompts.PagePrompt, 0, len(all))}
	for _, page := range slices.Sorted(maps.Keys(all)) {
		resp.Prompts = append(resp.Prompts, all[page])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List the page prompts the server uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), "/v1/prompts", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
