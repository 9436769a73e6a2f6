package query

// #region query-type

// Type is the recognized intent of a user question.
type Type string

const (
	TypeCurrentStep      Type = "current_step"
	TypeNextStep         Type = "next_step"
	TypeRequiredTools    Type = "required_tools"
	TypeCompletionStatus Type = "completion_status"
	TypeProgressOverview Type = "progress_overview"
	TypeHelp             Type = "help"
	TypeUnknown          Type = "unknown"
)

// #endregion query-type

// #region classification

// Classification is the classifier output for one question.
type Classification struct {
	Type       Type
	Confidence float32
}

// #endregion classification
