package agenttools

import (
	"fmt"

	"github.com/algojuke/discovery/pkg/catalogue"
	"github.com/algojuke/discovery/pkg/isrc"
	"github.com/algojuke/discovery/pkg/toolexec"
)

// Input bounds.
const (
	SemanticQueryMax    = 2000
	SemanticLimitMax    = 50
	SemanticLimitDef    = 50
	SemanticOffsetMax   = 500
	CatalogueQueryMax   = 500
	CatalogueLimitMax   = 100
	CatalogueLimitDef   = 20
	BatchISRCsMax       = 100
	PlaylistTitleMax    = 200
	PlaylistTracksMax   = 50
	PlaylistReasonMax   = 1000
	PlaylistDescription = 1000
)

type SemanticSearchInput struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func defaultSemanticSearchInput() SemanticSearchInput {
	return SemanticSearchInput{Limit: SemanticLimitDef}
}

func (in SemanticSearchInput) Validate() error {
	if err := toolexec.StringLength("query", in.Query, 1, SemanticQueryMax); err != nil {
		return err
	}
	if err := toolexec.IntRange("limit", in.Limit, 1, SemanticLimitMax); err != nil {
		return err
	}
	return toolexec.IntRange("offset", in.Offset, 0, SemanticOffsetMax)
}

type CatalogueSearchInput struct {
	Query      string               `json:"query"`
	SearchType catalogue.SearchType `json:"searchType"`
	Limit      int                  `json:"limit"`
}

func defaultCatalogueSearchInput() CatalogueSearchInput {
	return CatalogueSearchInput{SearchType: catalogue.SearchBoth, Limit: CatalogueLimitDef}
}

func (in CatalogueSearchInput) Validate() error {
	if err := toolexec.StringLength("query", in.Query, 1, CatalogueQueryMax); err != nil {
		return err
	}
	if err := toolexec.OneOf("searchType", string(in.SearchType),
		string(catalogue.SearchTracks), string(catalogue.SearchAlbums), string(catalogue.SearchBoth)); err != nil {
		return err
	}
	return toolexec.IntRange("limit", in.Limit, 1, CatalogueLimitMax)
}

type BatchMetadataInput struct {
	ISRCs []string `json:"isrcs"`
}

func (in BatchMetadataInput) Validate() error {
	if err := toolexec.ItemCount("isrcs", len(in.ISRCs), 0, BatchISRCsMax); err != nil {
		return err
	}
	for i, raw := range in.ISRCs {
		if _, err := toolexec.ISRC(fmt.Sprintf("isrcs[%d]", i), raw); err != nil {
			return err
		}
	}
	return nil
}

// normalized returns the upper-cased ISRCs with duplicates removed, in input order.
func (in BatchMetadataInput) normalized() []string {
	return dedupeISRCs(in.ISRCs)
}

type PlaylistTrackInput struct {
	ISRC      string `json:"isrc"`
	Reasoning string `json:"reasoning"`
}

type SuggestPlaylistInput struct {
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Tracks      []PlaylistTrackInput `json:"tracks"`
}

func (in SuggestPlaylistInput) Validate() error {
	if err := toolexec.StringLength("title", in.Title, 1, PlaylistTitleMax); err != nil {
		return err
	}
	if err := toolexec.StringLength("description", in.Description, 0, PlaylistDescription); err != nil {
		return err
	}
	if err := toolexec.ItemCount("tracks", len(in.Tracks), 1, PlaylistTracksMax); err != nil {
		return err
	}
	for i, tr := range in.Tracks {
		if _, err := toolexec.ISRC(fmt.Sprintf("tracks[%d].isrc", i), tr.ISRC); err != nil {
			return err
		}
		if err := toolexec.StringLength(fmt.Sprintf("tracks[%d].reasoning", i), tr.Reasoning, 1, PlaylistReasonMax); err != nil {
			return err
		}
	}
	return nil
}

func dedupeISRCs(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		code := isrc.Normalize(r)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

var (
	_ toolexec.Validator = SemanticSearchInput{}
	_ toolexec.Validator = CatalogueSearchInput{}
	_ toolexec.Validator = BatchMetadataInput{}
	_ toolexec.Validator = SuggestPlaylistInput{}
)
