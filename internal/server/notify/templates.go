package notify

import (
	"bytes"
	"text/template"
)

// Kind names a notification template.
type Kind string

const (
	KindWelcome         Kind = "welcome"
	KindVerification    Kind = "verification"
	KindLicenseUploaded Kind = "license_uploaded"
	KindLicenseApproved Kind = "license_approved"
	KindLicenseRejected Kind = "license_rejected"
)

// templateData is the union of the fields used by all templates.
type templateData struct {
	Email     string
	Link      string
	Reason    string
	UserEmail string
	UserID    string
	BaseURL   string
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(name + "_subject").Parse(subject)),
		body:    template.Must(template.New(name).Parse(body)),
	}
}

const enWelcomeText = `
Welcome to Rentdesk!

Your email address {{.Email}} has been verified and your account is active.

Next steps:
  - Sign in to your account
  - Upload the front and back of your driver license
  - Wait for an administrator to review it

Sign in: {{.BaseURL}}
`

const enVerificationText = `
Thanks for registering with Rentdesk.

Click the link below to verify your email address and activate your account.

{{.Link}}

The link expires in 24 hours. If you did not register, please ignore this
email.
`

const enLicenseUploadedText = `
A new driver license was uploaded and is waiting for review.

User: {{.UserEmail}}
User ID: {{.UserID}}

Review it in the admin console: {{.BaseURL}}/admin
`

const enLicenseApprovedText = `
Good news! Your driver license has been approved.

You can now rent vehicles with Rentdesk: {{.BaseURL}}
`

const enLicenseRejectedText = `
Unfortunately your driver license could not be approved.
{{if .Reason}}
Reason: {{.Reason}}
{{end}}
Please upload a new, clearly readable photo of your license: {{.BaseURL}}/dashboard
`

const zhWelcomeText = `
欢迎使用 Rentdesk！

您的邮箱 {{.Email}} 已通过验证，账户已激活。

接下来：
  - 登录您的账户
  - 上传驾驶证正面和背面照片
  - 等待管理员审核

登录：{{.BaseURL}}
`

const zhVerificationText = `
感谢您注册 Rentdesk。

请点击下方链接验证您的邮箱并激活账户。

{{.Link}}

链接 24 小时内有效。如果这不是您本人的操作，请忽略此邮件。
`

const zhLicenseUploadedText = `
有新的驾驶证已上传，等待审核。

用户：{{.UserEmail}}
用户 ID：{{.UserID}}

前往管理后台审核：{{.BaseURL}}/admin
`

const zhLicenseApprovedText = `
好消息！您的驾驶证已审核通过。

现在可以在 Rentdesk 租车了：{{.BaseURL}}
`

const zhLicenseRejectedText = `
很抱歉，您的驾驶证未能通过审核。
{{if .Reason}}
原因：{{.Reason}}
{{end}}
请重新上传清晰的驾驶证照片：{{.BaseURL}}/dashboard
`

var templates = map[string]map[Kind]mailTemplate{
	"en": {
		KindWelcome:         mustTemplate("enWelcome", "Welcome to Rentdesk", enWelcomeText),
		KindVerification:    mustTemplate("enVerification", "Verify your email address", enVerificationText),
		KindLicenseUploaded: mustTemplate("enLicenseUploaded", "New driver license from {{.UserEmail}}", enLicenseUploadedText),
		KindLicenseApproved: mustTemplate("enLicenseApproved", "Your driver license was approved", enLicenseApprovedText),
		KindLicenseRejected: mustTemplate("enLicenseRejected", "Your driver license was rejected", enLicenseRejectedText),
	},
	"zh-CN": {
		KindWelcome:         mustTemplate("zhWelcome", "欢迎使用 Rentdesk", zhWelcomeText),
		KindVerification:    mustTemplate("zhVerification", "请验证您的邮箱", zhVerificationText),
		KindLicenseUploaded: mustTemplate("zhLicenseUploaded", "新的驾驶证上传：{{.UserEmail}}", zhLicenseUploadedText),
		KindLicenseApproved: mustTemplate("zhLicenseApproved", "您的驾驶证已通过审核", zhLicenseApprovedText),
		KindLicenseRejected: mustTemplate("zhLicenseRejected", "您的驾驶证未通过审核", zhLicenseRejectedText),
	},
}

// lookupTemplate resolves lang, then fallback, then English.
func lookupTemplate(kind Kind, lang, fallback string) mailTemplate {
	for _, l := range []string{lang, fallback, "en"} {
		if set, ok := templates[l]; ok {
			if t, ok := set[kind]; ok {
				return t
			}
		}
	}
	return templates["en"][kind]
}

func createBody(tpl *template.Template, tplData interface{}) (string, error) {
	var buf bytes.Buffer
	err := tpl.Execute(&buf, tplData)
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

func render(kind Kind, lang, fallback string, data templateData) (string, string, error) {
	t := lookupTemplate(kind, lang, fallback)
	subject, err := createBody(t.subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := createBody(t.body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}
