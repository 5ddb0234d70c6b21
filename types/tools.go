package types

// PathStep is one (value, rank) pair of a path as sent by tool callers.
type PathStep struct {
	Value string  `json:"value" jsonschema:"Thought value (empty for an empty placeholder thought)"`
	Rank  float64 `json:"rank" jsonschema:"Rank of the thought among its siblings"`
}

// ToPath converts tool path steps into a Path.
func ToPath(steps []PathStep) Path {
	if len(steps) == 0 {
		return nil
	}
	p := make(Path, len(steps))
	for i, s := range steps {
		p[i] = Child{Value: s.Value, Rank: s.Rank}
	}
	return p
}

// FromPath converts a Path into tool path steps.
func FromPath(p Path) []PathStep {
	steps := make([]PathStep, len(p))
	for i, c := range p {
		steps[i] = PathStep{Value: c.Value, Rank: c.Rank}
	}
	return steps
}

// --- Navigate tool inputs ---

type GetChildrenInput struct {
	Context []string `json:"context,omitempty" jsonschema:"Context as a list of ancestor values from the top. Empty for the root"`
	Depth   int      `json:"depth,omitempty" jsonschema:"Max subtree depth (0 for unlimited). Default: 1" validate:"gte=0"`
}

type GetThoughtInput struct {
	Text string `json:"text" jsonschema:"Thought text to look up (case and whitespace insensitive)" validate:"required"`
}

type GetContextsInput struct {
	Text string `json:"text" jsonschema:"Thought text whose contexts to list" validate:"required"`
}

// --- Search tool inputs ---

type SearchInput struct {
	Query string `json:"query" jsonschema:"Search text to find across all thoughts" validate:"required"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results. Default: 20" validate:"gte=0"`
}

// --- Write tool inputs ---

type InsertThoughtInput struct {
	Context []string `json:"context,omitempty" jsonschema:"Context to insert into. Empty for the root"`
	Value   string   `json:"value" jsonschema:"Thought value" validate:"required"`
	Rank    *float64 `json:"rank,omitempty" jsonschema:"Explicit rank. Default: after the last child"`
}

type NewThoughtInput struct {
	At        []PathStep `json:"at,omitempty" jsonschema:"Path of the reference thought. Default: the cursor" validate:"dive"`
	Value     string     `json:"value" jsonschema:"Thought value" validate:"required"`
	Placement string     `json:"placement,omitempty" jsonschema:"Where to place: after or before or subthought. Default: after" validate:"omitempty,oneof=after before subthought"`
}

type RemoveThoughtInput struct {
	Context   []string `json:"context,omitempty" jsonschema:"Context holding the thought. Empty for the root"`
	Value     string   `json:"value" jsonschema:"Thought value" validate:"required"`
	Rank      float64  `json:"rank" jsonschema:"Rank of the thought in its context"`
	Recursive bool     `json:"recursive,omitempty" jsonschema:"Also remove the whole subtree. Default: false"`
}

type MoveThoughtInput struct {
	From []PathStep `json:"from" jsonschema:"Path of the thought to move" validate:"required,min=1,dive"`
	To   []PathStep `json:"to,omitempty" jsonschema:"Target path: the new parent for first/last, the sibling for before/after" validate:"dive"`
	Mode string     `json:"mode,omitempty" jsonschema:"Placement: first or last or before or after. Default: last" validate:"omitempty,oneof=first last before after"`
}

type ImportOutlineInput struct {
	Destination []PathStep `json:"destination,omitempty" validate:"dive"`
	Blocks      []Block    `json:"blocks" validate:"required,min=1"`
	Text        string     `json:"text,omitempty"`
	SkipRoot    bool       `json:"skipRoot,omitempty"`
}

// --- Cursor tool inputs ---

// CursorInput has no params: moves or reads the shared cursor.
type CursorInput struct{}

type SetCursorInput struct {
	Path []PathStep `json:"path,omitempty" jsonschema:"Path to place the cursor on. Empty clears the cursor" validate:"dive"`
}

type ToggleContextViewInput struct {
	Path []PathStep `json:"path,omitempty" jsonschema:"Path of the thought to toggle. Default: the cursor" validate:"dive"`
}

// --- Analyze tool inputs ---

// DocumentOverviewInput has no required params: returns global stats.
type DocumentOverviewInput struct{}

type FindPathInput struct {
	From     string `json:"from" jsonschema:"Starting thought" validate:"required"`
	To       string `json:"to" jsonschema:"Target thought" validate:"required"`
	MaxDepth int    `json:"maxDepth,omitempty" jsonschema:"Max search depth. Default: 5" validate:"gte=0"`
}

// KnowledgeGapsInput has no required params: returns sparse areas.
type KnowledgeGapsInput struct{}

// TopicClustersInput has no required params: returns connected groups.
type TopicClustersInput struct{}

// VerifyInput has no params: checks both indexes against each other.
type VerifyInput struct{}
