package consult

import (
	"strings"

	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

type Locale string

const (
	LocaleZH Locale = "zh"
	LocaleEN Locale = "en"
)

// ParseLocale falls back to Chinese for anything it does not recognise.
func ParseLocale(s string) Locale {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "en") {
		return LocaleEN
	}
	return LocaleZH
}

type phrasebook struct {
	persona        string
	chatPersona    string
	language       string
	profileHeader  string
	entityHeader   string
	taskHeader     string
	taskIntro      string
	closing        string
	disclaimer     string
	chatRules      []string
	fields         profileFields
	headings       map[content.Kind][4]heading
	ageGroups      map[profile.AgeGroup]string
	ambulatory     map[profile.AmbulatoryStatus]string
	steroids       map[profile.SteroidUse]string
	regions        map[profile.Region]string
	interests      map[profile.InterestArea]string
	none           string
	analysisFailed string
	chatFailed     string
	emptyReply     string
	titlePrefix    map[content.Kind]string
	dateLayout     string
}

type profileFields struct {
	ageGroup, mutation, ambulatory, steroids, region, interests, notes string
}

type heading struct {
	title, instruction string
}

var phrasebooks = map[Locale]*phrasebook{
	LocaleZH: {
		persona:       "你是一位富有同情心且专业的医学AI助手，专门服务于杜氏肌营养不良症（DMD）家庭。",
		chatPersona:   "你是DMD研究的AI解读员。你正在与一位家庭成员交谈。请始终保持友善，使用通俗易懂的中文（15岁理解水平），并基于下面提供的具体内容进行回答。",
		language:      "请用中文（简体）回答。",
		profileHeader: "当前患者档案：",
		entityHeader:  "内容背景：",
		taskHeader:    "任务：",
		taskIntro:     "请严格按照以下四个部分的标题和要求进行解读，**每个小标题请务必加粗** (例如: **标题**) ，并且每个部分之间请务必空一行以便阅读：",
		closing:       "请以简短清晰的免责声明结尾。",
		disclaimer:    "免责声明：这是由人工智能根据公开资料生成的解释。研究处于早期阶段，可能不适用于每一位患者。它不能替代医生的建议。请务必咨询专业医疗人员。",
		chatRules: []string{
			"严格基于上述内容和DMD的一般医学知识回答用户问题。",
			"不要讨论与上述内容无关的其他文章、试验或药物。",
			"如果内容没有回答该问题，请直说。",
		},
		fields: profileFields{
			ageGroup: "年龄组", mutation: "基因突变", ambulatory: "行动能力",
			steroids: "激素使用", region: "地区", interests: "关注领域", notes: "临床备注",
		},
		headings: map[content.Kind][4]heading{
			content.KindArticle: {
				{"1. 研究概要（家属版）", "用适合15岁学生理解的通俗中文总结这篇文章的核心内容。"},
				{"2. 研究概要（专业版）", "为专业人士提供的精炼医学摘要。"},
				{"3. 根据患者个性化病情，这个研究对我有何种意义", "结合上述患者档案进行个性化解读。例如，如果文章关于第51外显子跳跃，而患者有不同的突变，请解释为何可能不适用。如果是基础科学论文，请解释其潜在的未来影响。"},
				{"4. 给家庭启示", "保持充满希望但务实的语气，总结这篇文章给家庭带来的启示或建议。"},
			},
			content.KindTrial: {
				{"1. 试验概要（家属版）", "用通俗中文说明这项试验在测试什么、怎么进行。"},
				{"2. 试验概要（专业版）", "概括试验设计、分期、干预措施和主要终点。"},
				{"3. 根据患者个性化病情，我是否可能符合入组条件", "对照入选/排除标准和患者档案逐条分析，并说明试验地点与患者所在地区的关系。"},
				{"4. 给家庭启示", "说明下一步可以做什么，例如如何联系研究中心，语气务实。"},
			},
			content.KindDrug: {
				{"1. 药物概要（家属版）", "用通俗中文说明这种药物是什么、如何起作用。"},
				{"2. 药物概要（专业版）", "概括作用机制、适应症、用法用量和已知的主要副作用。"},
				{"3. 根据患者个性化病情，这种药物是否适合我", "结合突变类型、年龄、行动能力和激素使用情况分析适用性。"},
				{"4. 给家庭启示", "说明就医时可以向医生提出的问题，保持希望但务实。"},
			},
		},
		ageGroups:  map[profile.AgeGroup]string{profile.AgeChild: "儿童", profile.AgeAdult: "成人"},
		ambulatory: map[profile.AmbulatoryStatus]string{profile.Ambulatory: "可行走", profile.Wheelchair: "使用轮椅", profile.Mixed: "部分行走"},
		steroids:   map[profile.SteroidUse]string{profile.SteroidsYes: "是", profile.SteroidsNo: "否", profile.SteroidsUnsure: "不确定"},
		regions: map[profile.Region]string{
			profile.RegionAsia: "亚洲", profile.RegionNorthAmerica: "北美洲", profile.RegionEurope: "欧洲",
			profile.RegionOceania: "大洋洲", profile.RegionSouthAmerica: "南美洲", profile.RegionOther: "其他",
		},
		interests: map[profile.InterestArea]string{
			profile.InterestMedications: "新药与临床试验", profile.InterestDailyCare: "日常护理与康复",
			profile.InterestHeartLungs: "心脏与肺部健康", profile.InterestGeneTherapy: "基因疗法动态",
			profile.InterestBasicScience: "基础科学研究",
		},
		none:           "无",
		analysisFailed: "服务暂时不可用，请稍后再试。",
		chatFailed:     "网络连接出现问题，请重试。",
		emptyReply:     "抱歉，暂时无法生成摘要。",
		titlePrefix: map[content.Kind]string{
			content.KindTrial: "临床试验匹配: ",
			content.KindDrug:  "药物适配: ",
		},
		dateLayout: "2006/1/2",
	},
	LocaleEN: {
		persona:       "You are a compassionate, professional medical AI assistant serving families living with Duchenne muscular dystrophy (DMD).",
		chatPersona:   "You are an AI interpreter of DMD research talking with a family member. Stay friendly, use plain English a 15-year-old can follow, and answer from the specific content below.",
		language:      "Answer in English.",
		profileHeader: "Current patient profile:",
		entityHeader:  "Content:",
		taskHeader:    "Task:",
		taskIntro:     "Follow the four sections below exactly. **Bold every section heading** (e.g. **Heading**) and leave a blank line between sections:",
		closing:       "End with a short, clear disclaimer.",
		disclaimer:    "Disclaimer: this explanation was generated by AI from public material. Research may be early-stage and may not apply to every patient. It does not replace a doctor's advice. Always consult a medical professional.",
		chatRules: []string{
			"Answer strictly from the content above and general DMD medical knowledge.",
			"Do not discuss other articles, trials or drugs unrelated to the content above.",
			"If the content does not answer the question, say so.",
		},
		fields: profileFields{
			ageGroup: "Age group", mutation: "Genetic mutation", ambulatory: "Mobility",
			steroids: "Steroid use", region: "Region", interests: "Interests", notes: "Clinical notes",
		},
		headings: map[content.Kind][4]heading{
			content.KindArticle: {
				{"1. Summary for families", "Explain the core of this article so a 15-year-old could follow it."},
				{"2. Summary for professionals", "A concise medical abstract for clinicians."},
				{"3. What this research means for this patient", "Relate the findings to the profile above. If the article concerns a different mutation, explain why it may not apply; for basic science, explain the possible future impact."},
				{"4. Takeaways for the family", "Hopeful but realistic guidance the family can act on."},
			},
			content.KindTrial: {
				{"1. Trial overview for families", "Explain in plain words what the trial tests and how it runs."},
				{"2. Trial overview for professionals", "Design, phase, interventions and primary endpoints."},
				{"3. Could this patient be eligible", "Walk through the inclusion and exclusion criteria against the profile and relate the site locations to the patient's region."},
				{"4. Takeaways for the family", "Practical next steps, such as how to contact a study site."},
			},
			content.KindDrug: {
				{"1. Drug overview for families", "Explain in plain words what this drug is and how it works."},
				{"2. Drug overview for professionals", "Mechanism, indication, dosing and main known side effects."},
				{"3. Is this drug suitable for this patient", "Assess fit against mutation, age, mobility and steroid use."},
				{"4. Takeaways for the family", "Questions to bring to the treating physician; hopeful but realistic."},
			},
		},
		ageGroups:  map[profile.AgeGroup]string{profile.AgeChild: "child", profile.AgeAdult: "adult"},
		ambulatory: map[profile.AmbulatoryStatus]string{profile.Ambulatory: "ambulatory", profile.Wheelchair: "wheelchair user", profile.Mixed: "partially ambulatory"},
		steroids:   map[profile.SteroidUse]string{profile.SteroidsYes: "yes", profile.SteroidsNo: "no", profile.SteroidsUnsure: "unsure"},
		regions: map[profile.Region]string{
			profile.RegionAsia: "Asia", profile.RegionNorthAmerica: "North America", profile.RegionEurope: "Europe",
			profile.RegionOceania: "Oceania", profile.RegionSouthAmerica: "South America", profile.RegionOther: "Other",
		},
		interests: map[profile.InterestArea]string{
			profile.InterestMedications: "new drugs and trials", profile.InterestDailyCare: "daily care and rehab",
			profile.InterestHeartLungs: "heart and lung health", profile.InterestGeneTherapy: "gene therapy",
			profile.InterestBasicScience: "basic science",
		},
		none:           "none",
		analysisFailed: "The service is temporarily unavailable. Please try again later.",
		chatFailed:     "There was a network problem. Please try again.",
		emptyReply:     "Sorry, no summary could be generated right now.",
		titlePrefix: map[content.Kind]string{
			content.KindTrial: "Trial match: ",
			content.KindDrug:  "Drug fit: ",
		},
		dateLayout: "1/2/2006",
	},
}

func (l Locale) book() *phrasebook {
	if pb, ok := phrasebooks[l]; ok {
		return pb
	}
	return phrasebooks[LocaleZH]
}

func label[K ~string](m map[K]string, k K) string {
	if v, ok := m[k]; ok {
		return v
	}
	return string(k)
}
