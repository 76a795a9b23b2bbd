package identity

import "time"

// Doctor is a registered doctor identity. CredentialHash never leaves the
// process.
type Doctor struct {
	DoctorID       string    `db:"doctor_id" json:"doctorId"`
	Username       string    `db:"username" json:"username"`
	CredentialHash string    `db:"password_hash" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"-"`
	UpdatedAt      time.Time `db:"updated_at" json:"-"`
}

// Summary is the public view returned by login.
type Summary struct {
	DoctorID string `json:"doctorId"`
	Username string `json:"username"`
}

func (d *Doctor) Summary() Summary {
	return Summary{DoctorID: d.DoctorID, Username: d.Username}
}
