package types

// RequestSend is the dispatch payload. Message and ImageBase64 are mutually
// optional but at least one must be set; Caption only applies to images.
type RequestSend struct {
	To          string `json:"to"`
	Message     string `json:"message"`
	Token       string `json:"token"`
	ImageBase64 string `json:"image_base64"`
	Caption     string `json:"caption"`
}

type RequestDisconnect struct {
	Token string `json:"token"`
}

type RequestDelSession struct {
	Token string `json:"token"`
}

type RequestDelSessions struct {
	Numbers []string `json:"numbers"`
	Token   string   `json:"token"`
}

type RequestRegister struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type RequestLogin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RequestAdminLogin struct {
	Pin string `json:"pin"`
}
