package nurture

// Template is a Liquid subject and body pair rendered by the sending service.
type Template struct {
	Subject  string
	HTMLBody string
}

const signature = `<p>Best,<br>The Outreach Team</p>`

var catalogue = map[string][]Template{
	AggressiveClose: {
		{
			Subject:  `Quick question, {{ first_name | default: "there" }}`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Do you have 15 minutes this week to see how we could help {{ company | default: "your team" }}?</p>` + signature,
		},
		{
			Subject:  `Re: Quick question, {{ first_name | default: "there" }}`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Following up on my last note. Would Thursday or Friday work for a short call?</p>` + signature,
		},
		{
			Subject:  `Closing the loop`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>I have not heard back, so I will assume the timing is not right. Reply any time if that changes.</p>` + signature,
		},
	},
	ColdOutreach: {
		{
			Subject:  `Idea for {{ company | default: "your team" }}`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>I work with teams like {{ company | default: "yours" }} on getting more from outbound. Open to a short intro?</p>` + signature,
		},
		{
			Subject:  `Re: Idea for {{ company | default: "your team" }}`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Bumping this in case it got buried. Happy to send a two-minute overview instead of a call.</p>` + signature,
		},
		{
			Subject:  `How others in {{ title | default: "your role" }} handle this`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Most {{ title | default: "leaders" }} we speak with struggle with reply rates. We typically double them within a quarter.</p>` + signature,
		},
		{
			Subject:  `A short case study`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Here is how a similar company cut prospecting time in half. Worth a look?</p>` + signature,
		},
		{
			Subject:  `Worth a conversation?`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>If improving pipeline is on the roadmap for {{ company | default: "your team" }}, I would love 15 minutes.</p>` + signature,
		},
		{
			Subject:  `Different angle`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Maybe pipeline is not the priority. Is there someone else at {{ company | default: "your company" }} I should talk to?</p>` + signature,
		},
		{
			Subject:  `Still relevant, {{ first_name | default: "there" }}?`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Checking in one more time. A yes, no or later all help me.</p>` + signature,
		},
		{
			Subject:  `Last note from me`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>This is my last email. If things change, just reply and I will pick it up.</p>` + signature,
		},
	},
	WarmNurture: {
		{
			Subject:  `Good to connect, {{ first_name | default: "there" }}`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Thanks for your interest. Here is a short overview of what we do.</p>` + signature,
		},
		{
			Subject:  `A resource you may like`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Sharing our guide on outbound benchmarks for {{ title | default: "teams like yours" }}.</p>` + signature,
		},
		{
			Subject:  `Questions so far?`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Any questions I can answer about fitting this into {{ company | default: "your workflow" }}?</p>` + signature,
		},
		{
			Subject:  `Customer story`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>A quick story from a customer who started where you are today.</p>` + signature,
		},
		{
			Subject:  `Ready when you are`,
			HTMLBody: `<p>Hi {{ first_name | default: "there" }},</p><p>Whenever the timing works, reply here and we will set up a walkthrough.</p>` + signature,
		},
	},
}

// TemplateFor returns email n (zero based) of a sequence.
func TemplateFor(sequence string, n int) (Template, error) {
	list, ok := catalogue[sequence]
	if !ok {
		return Template{}, ErrUnknownSequence
	}
	if n < 0 || n >= len(list) {
		return Template{}, ErrSequenceComplete
	}
	return list[n], nil
}
