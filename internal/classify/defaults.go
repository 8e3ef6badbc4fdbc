package classify

// ScoringConfig holds every tunable the 14-dimension classifier reads.
// Weights are expected to sum to roughly 1.0 but are not renormalized;
// weights that drift from 1.0 just shift the scale of the raw score,
// which the tier boundaries are calibrated against. The config file
// cannot set weights or keyword lists; only the three boundaries are
// read from it (tierBoundaries).
type ScoringConfig struct {
	Weights DimensionWeights

	// Tier boundaries on the raw weighted score, ascending.
	Boundary1 float64 // SIMPLE/MEDIUM split, default 0.0
	Boundary2 float64 // MEDIUM/COMPLEX split, default 0.03
	Boundary3 float64 // COMPLEX/REASONING split, default 0.15

	ConfidenceSteepness float64 // k in sigmoid(k * |score - boundary|), default 8
	ConfidenceThreshold float64 // below this, tier is reported as unknown, default 0.50

	SimpleTokenBand  int // userTokens <= this nudges toward SIMPLE, default 5
	ComplexTokenBand int // userTokens >= this nudges toward COMPLEX/REASONING, default 40

	AgenticThreshold float64 // agenticScore >= this switches to the agentic tier table, default 0.69

	MaxTokensForceComplex   int // totalTokens above this forces COMPLEX, default 100000
	StructuredOutputMinTier int // minimum tier (as int ordinal) when the last user message matches json|structured|schema, default MEDIUM

	Keywords KeywordLists
}

// DimensionWeights is the per-dimension contribution to the raw score.
// Each dimension's signal is in [0,1] (or [-1,0] for Negation and
// Simple, which pull the score down) before weighting.
type DimensionWeights struct {
	Code             float64
	Reasoning        float64
	TokenLength      float64
	Technical        float64
	Creative         float64
	Imperative       float64
	Constraint       float64
	OutputFormat     float64
	Reference        float64
	Negation         float64
	DomainSpecific   float64
	Agentic          float64
	MultiStep        float64
	QuestionComplexity float64
	Simple           float64
}

// KeywordLists groups the multilingual keyword corpora used by the
// keyword-matching dimensions. Each list mixes English, Chinese,
// Japanese, Russian and German terms so a prompt in any of those
// languages contributes to the matching dimension.
type KeywordLists struct {
	Code           []string
	Reasoning      []string
	Simple         []string
	Technical      []string
	Creative       []string
	Imperative     []string
	Constraint     []string
	OutputFormat   []string
	Reference      []string
	Negation       []string
	DomainSpecific []string
	Agentic        []string
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: DimensionWeights{
			Code:               0.14,
			Reasoning:          0.14,
			TokenLength:        0.10,
			Technical:          0.08,
			Creative:           0.05,
			Imperative:         0.04,
			Constraint:         0.07,
			OutputFormat:       0.04,
			Reference:          0.05,
			Negation:           0.03,
			DomainSpecific:     0.08,
			Agentic:            0.10,
			MultiStep:          0.06,
			QuestionComplexity: 0.02,
			Simple:             0.12,
		},
		Boundary1:               0.0,
		Boundary2:               0.03,
		Boundary3:               0.15,
		ConfidenceSteepness:     8,
		ConfidenceThreshold:     0.50,
		SimpleTokenBand:         5,
		ComplexTokenBand:        40,
		AgenticThreshold:        0.69,
		MaxTokensForceComplex:   100000,
		StructuredOutputMinTier: 1, // tier.Medium
		Keywords:                defaultKeywords(),
	}
}

func defaultKeywords() KeywordLists {
	return KeywordLists{
		Code: []string{
			"function", "class", "import", "def ", "return", "variable", "compile", "syntax", "debug",
			"refactor", "algorithm", "recursion", "pointer", "struct", "interface", "goroutine", "async",
			"函数", "代码", "编译", "调试", "算法", "类", "変数", "関数", "コンパイル", "デバッグ",
			"функция", "код", "компиляция", "отладка", "алгоритм", "funktion", "klasse", "kompilieren",
		},
		Reasoning: []string{
			"why", "prove", "derive", "therefore", "logically", "step by step", "explain the reasoning",
			"first principles", "trade-off", "tradeoff", "compare and contrast", "root cause",
			"为什么", "证明", "推导", "因此", "なぜ", "証明", "導出", "почему", "докажи", "следовательно",
			"warum", "beweise", "daher",
		},
		Simple: []string{
			"hi", "hello", "thanks", "thank you", "ok", "okay", "yes", "no", "what is", "define",
			"你好", "谢谢", "是什么", "こんにちは", "ありがとう", "привет", "спасибо", "hallo", "danke",
		},
		Technical: []string{
			"architecture", "protocol", "latency", "throughput", "kubernetes", "database", "schema",
			"api", "microservice", "distributed system", "consensus", "encryption",
			"架构", "协议", "数据库", "アーキテクチャ", "プロトコル", "データベース",
			"архитектура", "протокол", "база данных", "architektur", "protokoll", "datenbank",
		},
		Creative: []string{
			"write a story", "poem", "fictional", "imagine", "brainstorm", "creative", "metaphor",
			"故事", "诗", "创意", "物語", "詩", "創造的", "история", "стихотворение", "geschichte", "gedicht",
		},
		Imperative: []string{
			"must", "always", "never", "required", "mandatory", "do not", "ensure that",
			"必须", "一定", "必ず", "決して", "обязательно", "никогда", "muss", "immer", "niemals",
		},
		Constraint: []string{
			"within", "limit", "no more than", "at most", "under budget", "constraint", "restricted to",
			"限制", "不超过", "制限", "以内", "ограничение", "не более", "begrenzt", "höchstens",
		},
		OutputFormat: []string{
			"json", "structured", "schema", "format as", "table", "csv", "yaml", "markdown list",
			"格式", "表格", "フォーマット", "表", "формат", "таблица", "format", "tabelle",
		},
		Reference: []string{
			"according to", "as shown in", "see above", "the document", "attached file", "citation",
			"根据", "如上所示", "によると", "上記", "согласно", "как показано", "gemäß", "siehe oben",
		},
		Negation: []string{
			"don't", "do not", "avoid", "without", "except", "not including",
			"不要", "避免", "しない", "除く", "не надо", "избегать", "nicht", "vermeiden",
		},
		DomainSpecific: []string{
			"clinical trial", "tax code", "statute", "differential equation", "quantum", "genome",
			"临床试验", "税法", "量子", "基因组", "клиническое испытание", "налоговый кодекс",
			"klinische studie", "steuerrecht",
		},
		Agentic: []string{
			"then", "after that", "next step", "use the tool", "call the function", "search for",
			"run the command", "execute", "iterate until", "plan and", "multi-step", "orchestrate",
			"然后", "接下来", "调用工具", "执行", "それから", "次に", "ツールを使用", "実行",
			"затем", "далее", "используй инструмент", "выполни", "dann", "als nächstes", "ausführen",
		},
	}
}
