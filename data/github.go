package data

// GitHubContent is the subset of a contents API object the uploader reads.
type GitHubContent struct {
	Name string `json:"name"`
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Type string `json:"type"`
}

// GitHubPutRequest is the body of PUT /repos/{repo}/contents/{path}.
type GitHubPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type GitHubPutResponse struct {
	Content *GitHubContent `json:"content"`
}

// GitHubError is the error body returned by the API.
type GitHubError struct {
	Message string `json:"message"`
}
