package referral

type ProcessRequest struct {
	BlobName string `json:"blob_name"`
}

type ReconcileResponse struct {
	Reconciled int `json:"reconciled"`
}
