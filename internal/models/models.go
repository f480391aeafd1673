package models

const RoleAdmin = "ADMIN"

type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemPaid      ItemStatus = "PAID"
	ItemCompleted ItemStatus = "COMPLETED"
)

type UserIdentity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RoleName string `json:"roleName"`
}

func (u *UserIdentity) IsAdmin() bool {
	return u != nil && u.RoleName == RoleAdmin
}

type Book struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Type            string   `json:"type"`
	Description     string   `json:"description,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	ImagesStringURL []string `json:"imagesStringUrl"`
}

type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
}

type CartItem struct {
	ID       int64  `json:"id"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
	Book     Book   `json:"bookResponse"`
}

type Cart struct {
	ID    int64      `json:"id"`
	Items []CartItem `json:"itemResponseList"`
}

type ItemRequest struct {
	Quantity int        `json:"quantity"`
	Status   ItemStatus `json:"status"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Image struct {
	Filename string
	Content  []byte
}

// BookForm is the multipart payload of admin book create/update.
type BookForm struct {
	Title       string
	Author      string
	Type        string
	Description string
	Price       *float64
	Images      []Image
}
