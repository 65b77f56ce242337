package assistant

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/markdave123-py/libassist/internal/models"
)

//go:embed templates
var templatesFS embed.FS

// SiteResource is an operator-authored entry of the knowledge prompt's
// resource directory.
type SiteResource struct {
	Name             string
	Type             models.ResourceType
	Description      string
	URL              string
	AccessConditions string
}

const corporateAccess = "корпоративний доступ (лише з мережі академії або через VPN)"

var siteResources = []SiteResource{
	{
		Name:             "Електронний каталог",
		Type:             models.ResourceCatalog,
		Description:      "Пошук документів бібліотечного фонду ХДАК за автором, назвою, тематикою. Розпочато у 1997 р. на базі CDS/ISIS, з 2008 р. АІБС «УФД/Бібліотека». Перший в Україні ЕК «Нотні видання» створено саме тут.",
		URL:              "https://library-service.com.ua:8443/khkhdak/DocumentSearchForm",
		AccessConditions: "відкритий доступ",
	},
	{
		Name:             "Інституційний репозитарій ХДАК",
		Type:             models.ResourceRepository,
		Description:      "Повнотекстові публікації учених академії: підручники, монографії, статті, кваліфікаційні роботи, навчально-методичні матеріали. Введено в дію 29 березня 2019 р.",
		URL:              "https://repository.ac.kharkov.ua/home",
		AccessConditions: "відкритий доступ",
	},
	{
		Name:             "Електронна бібліотека «Культура України»",
		Type:             models.ResourceElectronicLibrary,
		Description:      "Ресурс Національної парламентської бібліотеки України з повнотекстовими виданнями.",
		URL:              "http://elib.nplu.org/",
		AccessConditions: "відкритий доступ",
	},
	{
		Name:             "Scopus",
		Type:             models.ResourceDatabase,
		Description:      "Міжнародна наукометрична база даних анотацій та цитувань. Публікації вчених ХДАК у Scopus: 13 статей.",
		URL:              "https://www.scopus.com/",
		AccessConditions: corporateAccess,
	},
	{
		Name:             "Web of Science",
		Type:             models.ResourceDatabase,
		Description:      "Міжнародна наукометрична база даних. Публікації вчених ХДАК у Web of Science: 10 статей.",
		URL:              "https://www.webofscience.com/",
		AccessConditions: corporateAccess,
	},
	{
		Name:             "ScienceDirect (Elsevier)",
		Type:             models.ResourceDatabase,
		Description:      "Повнотекстові статті наукових журналів видавництва Elsevier.",
		URL:              "https://www.sciencedirect.com/",
		AccessConditions: corporateAccess,
	},
	{
		Name:             "Springer Link",
		Type:             models.ResourceDatabase,
		Description:      "Повнотекстові ресурси порталу Springer: журнали, книги, протоколи конференцій.",
		URL:              "https://link.springer.com/",
		AccessConditions: corporateAccess,
	},
	{
		Name:             "Research 4 Life",
		Type:             models.ResourceDatabase,
		Description:      "Міжнародна програма доступу до наукової та медичної літератури для закладів освіти.",
		URL:              "https://login.research4life.org/tacsgr1portal_research4life_org/",
		AccessConditions: corporateAccess,
	},
	{
		Name:             "Артефактні книжкові видання (фонд рідкісних видань)",
		Type:             models.ResourceOther,
		Description:      "Стародруки і рідкісні видання XVII–XIX ст. Виділено в окрему колекцію у 1997 р. (1262 примірники станом на 2009 р.). Найдавніша книга «Маргарит» Іоана Златоуста (Острог, 1595 р.).",
		URL:              "https://lib-hdak.in.ua/artifacts.html",
		AccessConditions: "відкритий доступ (перегляд каталогу онлайн)",
	},
	{
		Name:             "Каталог DOAJ (Directory of Open Access Journals)",
		Type:             models.ResourceOther,
		Description:      "Каталог рецензованих відкритих наукових журналів.",
		URL:              "https://lib-hdak.in.ua/catalog-doaj.html",
		AccessConditions: "відкритий доступ",
	},
	{
		Name:             "Реєстр авторефератів дисертацій (УкрІНТЕІ)",
		Type:             models.ResourceOther,
		Description:      "Загальнодержавна база авторефератів дисертацій України.",
		URL:              "http://nrat.ukrintei.ua/",
		AccessConditions: "відкритий доступ",
	},
	{
		Name:             "Офіційний сайт бібліотеки ХДАК",
		Type:             models.ResourceOther,
		Description:      "Головна сторінка бібліотеки: новини, структура, послуги, контакти.",
		URL:              "https://lib-hdak.in.ua/",
		AccessConditions: "відкритий доступ",
	},
}

type infoField struct{ key, value string }

var libraryInfo = map[models.Language][]infoField{
	models.LanguageUkrainian: {
		{"address", "вул. Бурсацький узвіз, 4, Харків, Україна"},
		{"email", "library@hdak.edu.ua"},
		{"phone", "+38 (057) XXX-XX-XX"},
		{"working_hours", "Пн-Пт: 9:00 - 17:00, Сб-Нд: Вихідний"},
		{"rules", "Користування бібліотекою безкоштовне для студентів та викладачів ХДАК."},
		{"about", "Бібліотека ХДАК одна з найстаріших та найбільших бібліотек Харкова з багатим фондом документів."},
	},
	models.LanguageRussian: {
		{"address", "ул. Бурсацкий узвоз, 4, Харьков, Украина"},
		{"email", "library@hdak.edu.ua"},
		{"phone", "+38 (057) XXX-XX-XX"},
		{"working_hours", "Пн-Пт: 9:00 - 17:00, Сб-Вс: Выходной"},
		{"rules", "Пользование библиотекой бесплатно для студентов и преподавателей ХГАК."},
		{"about", "Библиотека ХГАК одна из старейших и крупнейших библиотек Харькова с богатым фондом документов."},
	},
	models.LanguageEnglish: {
		{"address", "Bursatskyi Uzviz St., 4, Kharkiv, Ukraine"},
		{"email", "library@hdak.edu.ua"},
		{"phone", "+38 (057) XXX-XX-XX"},
		{"working_hours", "Mon-Fri: 9:00 - 17:00, Sat-Sun: Closed"},
		{"rules", "Library access is free for HDAK students and faculty."},
		{"about", "HDAK Library is one of the oldest and largest libraries in Kharkiv with a rich collection of documents."},
	},
}

var (
	promptTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

	renderOnce sync.Once
	rendered   map[models.Language]string
	renderErr  error
)

// KnowledgePrompt returns the static knowledge prompt for lang. Unsupported
// languages get the default language's prompt.
func KnowledgePrompt(lang models.Language) (string, error) {
	renderOnce.Do(func() {
		rendered, renderErr = renderAll()
	})
	if renderErr != nil {
		return "", renderErr
	}
	return rendered[NormalizeLanguage(string(lang))], nil
}

func renderAll() (map[models.Language]string, error) {
	siteMap, err := templatesFS.ReadFile("templates/sitemap.txt")
	if err != nil {
		return nil, fmt.Errorf("read site map: %w", err)
	}
	resources := formatSiteResources(siteResources)

	out := make(map[models.Language]string, len(libraryInfo))
	for lang, info := range libraryInfo {
		var b strings.Builder
		err := promptTemplates.ExecuteTemplate(&b, string(lang)+".tmpl", struct {
			SiteMap     string
			Resources   string
			LibraryInfo string
		}{
			SiteMap:     strings.TrimSpace(string(siteMap)),
			Resources:   resources,
			LibraryInfo: formatLibraryInfo(info),
		})
		if err != nil {
			return nil, fmt.Errorf("render %s knowledge prompt: %w", lang, err)
		}
		out[lang] = strings.TrimSpace(b.String())
	}
	return out, nil
}

func formatSiteResources(rs []SiteResource) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, fmt.Sprintf("• %s\n  Тип: %s\n  Опис: %s\n  URL: %s\n  Доступ: %s",
			r.Name, r.Type, r.Description, r.URL, r.AccessConditions))
	}
	return strings.Join(parts, "\n\n")
}

func formatLibraryInfo(fields []infoField) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, "- "+f.key+": "+f.value)
	}
	return strings.Join(lines, "\n")
}
