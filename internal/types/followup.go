package types

// Followup records a confirmed call whose order was never created, for
// operator follow-up in DynamoDB
type Followup struct {
	AgentID        string  `json:"agentId" dynamodbav:"AgentID"`   // partition key
	RecordID       string  `json:"recordId" dynamodbav:"RecordID"` // sort key, RFC3339 time + "#" + uuid
	LeadID         int     `json:"leadId" dynamodbav:"LeadID"`
	LeadName       string  `json:"leadName" dynamodbav:"LeadName"`
	LeadPhone      string  `json:"leadPhone" dynamodbav:"LeadPhone"`
	Outcome        Outcome `json:"outcome" dynamodbav:"Outcome"`
	Error          string  `json:"error" dynamodbav:"Error"`
	IdempotencyKey string  `json:"idempotencyKey" dynamodbav:"IdempotencyKey"`
	Lines          int     `json:"lines" dynamodbav:"Lines"`
	Total          float64 `json:"total" dynamodbav:"Total"`
	CreatedAt      string  `json:"createdAt" dynamodbav:"CreatedAt"` // RFC3339
}
